package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dexAdapter/internal/dex"
	"dexAdapter/internal/model"
	"dexAdapter/internal/scan"
)

// Factory is a pool factory watched for discovery on an RPC network.
type Factory struct {
	Version    string `mapstructure:"version"`
	Address    string `mapstructure:"address"`
	Kind       string `mapstructure:"kind"`
	StartBlock uint64 `mapstructure:"start-block"`
}

// Network holds the upstream endpoints of one chain.
type Network struct {
	Name            string    `mapstructure:"-"`
	ChainID         uint64    `mapstructure:"chain-id"`
	SubgraphURL     string    `mapstructure:"subgraph-url"`
	RPCURL          string    `mapstructure:"rpc-url"`
	Schema          string    `mapstructure:"schema"`
	RPS             float64   `mapstructure:"rps"`
	Burst           int       `mapstructure:"burst"`
	LogRange        uint64    `mapstructure:"log-range"`
	DiscoveryWindow uint64    `mapstructure:"discovery-window"`
	IncludeReserves bool      `mapstructure:"include-reserves"`
	Factories       []Factory `mapstructure:"factories"`
}

// SchemaOverride returns the configured schema version, if any.
func (n Network) SchemaOverride() (model.SchemaVersion, bool, error) {
	if strings.TrimSpace(n.Schema) == "" {
		return 0, false, nil
	}
	v, err := model.ParseSchemaVersion(n.Schema)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Listen         string
	LogLevel       string
	DexKey         string
	PageSize       int
	MaxBlockRange  uint64
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RedisURL       string
	PgDSN          string
	CORSOrigins    []string
	TTLBlocks      time.Duration
	TTLAssets      time.Duration
	TTLPairs       time.Duration

	// Networks are ordered by enabled-networks, or by name when that is unset.
	Networks []Network
}

// Network looks up a configured network by name.
func (c Config) Network(name string) (Network, bool) {
	for _, n := range c.Networks {
		if n.Name == name {
			return n, true
		}
	}
	return Network{}, false
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8000")
	v.SetDefault("log-level", "info")
	v.SetDefault("dex-key", "algebra")
	v.SetDefault("page-size", 1000)
	v.SetDefault("max-block-range", uint64(10000))
	v.SetDefault("request-timeout", 30*time.Second)
	v.SetDefault("max-retries", 2)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("cors-origins", []string{"*"})
	v.SetDefault("cache-ttl-blocks", 5*time.Second)
	v.SetDefault("cache-ttl-assets", 300*time.Second)
	v.SetDefault("cache-ttl-pairs", 60*time.Second)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		Listen:         v.GetString("listen"),
		LogLevel:       v.GetString("log-level"),
		DexKey:         v.GetString("dex-key"),
		PageSize:       v.GetInt("page-size"),
		MaxBlockRange:  v.GetUint64("max-block-range"),
		RequestTimeout: v.GetDuration("request-timeout"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		RedisURL:       os.ExpandEnv(v.GetString("redis-url")),
		PgDSN:          os.ExpandEnv(v.GetString("pg-dsn")),
		CORSOrigins:    getStringSlice(v, "cors-origins"),
		TTLBlocks:      v.GetDuration("cache-ttl-blocks"),
		TTLAssets:      v.GetDuration("cache-ttl-assets"),
		TTLPairs:       v.GetDuration("cache-ttl-pairs"),
	}

	networks := map[string]Network{}
	if err := v.UnmarshalKey("networks", &networks); err != nil {
		return Config{}, fmt.Errorf("decode networks: %w", err)
	}

	names := getStringSlice(v, "enabled-networks")
	if len(names) == 0 {
		for name := range networks {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		n, ok := networks[name]
		if !ok {
			return Config{}, fmt.Errorf("enabled network %q is not configured", name)
		}
		n.Name = name
		n.SubgraphURL = os.ExpandEnv(n.SubgraphURL)
		n.RPCURL = os.ExpandEnv(n.RPCURL)
		if n.LogRange == 0 {
			n.LogRange = 2000
		}
		if n.DiscoveryWindow == 0 {
			n.DiscoveryWindow = 10000
		}
		cfg.Networks = append(cfg.Networks, n)
	}

	return cfg, nil
}

// Validate rejects settings the adapter cannot start with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Networks) == 0 {
		errs = append(errs, errors.New("no networks configured"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page-size must be positive, got %d", c.PageSize))
	}
	if c.MaxBlockRange == 0 {
		errs = append(errs, errors.New("max-block-range must be positive"))
	}

	seen := map[uint64]string{}
	for _, n := range c.Networks {
		if n.SubgraphURL == "" && n.RPCURL == "" {
			errs = append(errs, fmt.Errorf("network %s: subgraph-url or rpc-url is required", n.Name))
		}
		if _, _, err := n.SchemaOverride(); err != nil {
			errs = append(errs, fmt.Errorf("network %s: %w", n.Name, err))
		}
		if n.RPS < 0 || n.Burst < 0 {
			errs = append(errs, fmt.Errorf("network %s: rps and burst must not be negative", n.Name))
		}
		if n.ChainID != 0 {
			if other, ok := seen[n.ChainID]; ok {
				errs = append(errs, fmt.Errorf("network %s: chain-id %d already used by %s", n.Name, n.ChainID, other))
			}
			seen[n.ChainID] = n.Name
		}
		if len(n.Factories) > 0 && n.RPCURL == "" {
			errs = append(errs, fmt.Errorf("network %s: factories require rpc-url", n.Name))
		}
		for i, f := range n.Factories {
			if _, err := scan.ParseAddress(f.Address); err != nil {
				errs = append(errs, fmt.Errorf("network %s: factory %d: %w", n.Name, i, err))
			}
			if _, err := dex.ParseFactoryKind(f.Kind); err != nil {
				errs = append(errs, fmt.Errorf("network %s: factory %d: %w", n.Name, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

// NetworkNames lists the configured networks in order.
func (c Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for _, n := range c.Networks {
		names = append(names, n.Name)
	}
	return names
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
