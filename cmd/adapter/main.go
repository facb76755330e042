package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dexAdapter/internal/config"
)

func main() {
	root := &cobra.Command{
		Use:          "adapter",
		Short:        "DEX Screener adapter for Algebra subgraphs and pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP adapter",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", ":8000", "HTTP listen address")
	serveCmd.Flags().Uint64("max-block-range", 10000, "largest toBlock - fromBlock accepted by /events")
	serveCmd.Flags().Duration("request-timeout", 30*time.Second, "upstream deadline per request")
	root.AddCommand(serveCmd)

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Export canonical events of a block range as JSONL",
		RunE:  runEvents,
	}
	eventsCmd.Flags().String("network", "", "network name")
	eventsCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	eventsCmd.Flags().Uint64("to", 0, "end block (inclusive)")
	eventsCmd.Flags().String("out", "-", "output JSONL path, - for stdout")
	root.AddCommand(eventsCmd)

	detectCmd := &cobra.Command{
		Use:   "detect-schema",
		Short: "Print the detected schema version of every subgraph network",
		RunE:  runDetect,
	}
	root.AddCommand(detectCmd)

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Scan factory logs for pools on an RPC network",
		RunE:  runDiscover,
	}
	discoverCmd.Flags().String("network", "", "network name")
	discoverCmd.Flags().Uint64("from", 0, "start block (inclusive), 0 means the factory start block")
	discoverCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	root.AddCommand(discoverCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads and validates configuration, then builds the logger and a
// context cancelled on SIGINT/SIGTERM.
func setup(cmd *cobra.Command) (config.Config, *zap.Logger, context.Context, context.CancelFunc, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, nil, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return cfg, logger, ctx, stop, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
