package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dexAdapter/internal/cache"
	"dexAdapter/internal/chain"
	"dexAdapter/internal/config"
	"dexAdapter/internal/dex"
	"dexAdapter/internal/events"
	"dexAdapter/internal/resolver"
	"dexAdapter/internal/scan"
	"dexAdapter/internal/schema"
	"dexAdapter/internal/storage/postgres"
	"dexAdapter/internal/subgraph"
	"dexAdapter/internal/upstream"
)

// app holds every long-lived component built from the configuration.
type app struct {
	logger   *zap.Logger
	session  *upstream.Session
	detector *schema.Detector
	resolver *resolver.Resolver
	engine   *events.Engine

	subgraphs map[string]upstream.Endpoint
	chains    []*chain.Client
	store     *postgres.Store
	cache     *cache.Redis
}

type buildOptions struct {
	// withCache connects the Redis response cache when redis-url is set.
	withCache bool
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts buildOptions) (*app, error) {
	a := &app{
		logger:    logger,
		session:   upstream.NewSession(cfg.RequestTimeout),
		resolver:  resolver.New(logger),
		engine:    events.NewEngine(cfg.PageSize, logger),
		subgraphs: map[string]upstream.Endpoint{},
	}
	retry := scan.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}
	gql := upstream.NewClient(a.session, upstream.ClientConfig{Retry: retry}, logger)
	a.detector = schema.NewDetector(gql, logger)

	if cfg.PgDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.store = store
		if err := store.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.resolver.SetPoolSink(store)
	}

	if opts.withCache && cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cache = rc
	}

	for _, n := range cfg.Networks {
		var err error
		if n.SubgraphURL != "" {
			err = a.wireSubgraph(n, gql)
		} else {
			err = a.wireRPC(ctx, n, retry)
		}
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("network %s: %w", n.Name, err)
		}
		if err := a.warmPools(ctx, n.Name); err != nil {
			a.Close()
			return nil, fmt.Errorf("network %s: %w", n.Name, err)
		}
	}
	return a, nil
}

func (a *app) wireSubgraph(n config.Network, gql *upstream.Client) error {
	ep := upstream.Endpoint{
		Network: n.Name,
		URL:     n.SubgraphURL,
		Limiter: upstream.NewLimiter(n.RPS, n.Burst, n.Name),
	}
	version, override, err := n.SchemaOverride()
	if err != nil {
		return err
	}
	if override {
		a.detector.SetOverride(ep, version)
	}

	client := subgraph.New(ep, gql, a.logger)
	a.subgraphs[n.Name] = ep
	a.resolver.Register(n.Name, resolver.Backend{Metadata: client})
	a.engine.Register(events.NewSubgraphSource(client, a.detector, a.resolver, a.logger))
	return nil
}

func (a *app) wireRPC(ctx context.Context, n config.Network, retry scan.RetryPolicy) error {
	client, err := chain.NewClient(ctx, n.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	a.chains = append(a.chains, client)

	if n.ChainID != 0 {
		id, err := client.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		if id.Uint64() != n.ChainID {
			return fmt.Errorf("rpc reports chain id %d, configured %d", id.Uint64(), n.ChainID)
		}
	}

	fetcher, err := dex.NewLogFetcher(dex.LogFetcherConfig{
		Network:   n.Name,
		ChunkSize: n.LogRange,
		Retry:     retry,
		Limiter:   upstream.NewLimiter(n.RPS, n.Burst, n.Name),
	}, client, a.logger)
	if err != nil {
		return err
	}

	factories := make([]resolver.Factory, 0, len(n.Factories))
	for _, f := range n.Factories {
		kind, err := dex.ParseFactoryKind(f.Kind)
		if err != nil {
			return err
		}
		address, err := scan.ParseAddress(f.Address)
		if err != nil {
			return err
		}
		decoder, err := dex.NewFactoryDecoder(kind)
		if err != nil {
			return err
		}
		factories = append(factories, resolver.Factory{
			Version:    f.Version,
			Address:    address,
			StartBlock: f.StartBlock,
			Decoder:    decoder,
		})
	}

	a.resolver.Register(n.Name, resolver.Backend{
		Metadata: dex.NewMetadataFetcher(n.Name, client, a.logger),
		Discovery: &resolver.Discovery{
			Factories: factories,
			Logs:      fetcher,
			Head:      client.LatestBlockNumber,
			Window:    n.DiscoveryWindow,
		},
	})
	a.engine.Register(events.NewLogSource(events.LogSourceConfig{
		Network:         n.Name,
		IncludeReserves: n.IncludeReserves,
	}, a.resolver, fetcher, client, a.logger))
	return nil
}

// warmPools seeds the resolver with the pools mirrored in Postgres.
func (a *app) warmPools(ctx context.Context, network string) error {
	if a.store == nil {
		return nil
	}
	pools, err := a.store.LoadPools(ctx, network)
	if err != nil {
		return fmt.Errorf("load pools: %w", err)
	}
	for _, p := range pools {
		a.resolver.Remember(p)
	}
	if len(pools) > 0 {
		a.logger.Info("pools loaded from registry", zap.String("network", network), zap.Int("pools", len(pools)))
	}
	return nil
}

func (a *app) Close() {
	a.session.Close()
	for _, c := range a.chains {
		c.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
}
