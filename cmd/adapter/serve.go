package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexAdapter/internal/serializer"
	"dexAdapter/internal/server"
)

const version = "1.0.0"

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, ctx, stop, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	a, err := build(ctx, cfg, logger, buildOptions{withCache: true})
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}
	defer a.Close()

	var opts []server.Option
	if a.cache != nil {
		opts = append(opts, server.WithCache(a.cache))
	}
	srv := server.New(server.Config{
		Listen:         cfg.Listen,
		Version:        version,
		MaxBlockRange:  cfg.MaxBlockRange,
		PageSize:       cfg.PageSize,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		TTLBlocks:      cfg.TTLBlocks,
		TTLAssets:      cfg.TTLAssets,
		TTLPairs:       cfg.TTLPairs,
	}, a.engine, a.resolver, serializer.New(cfg.DexKey), logger, opts...)

	logger.Info("adapter start",
		zap.String("listen", cfg.Listen),
		zap.Strings("networks", cfg.NetworkNames()),
		zap.Bool("response_cache", a.cache != nil),
		zap.Bool("pool_registry", a.store != nil),
	)
	return srv.Run(ctx)
}
