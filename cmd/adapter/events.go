package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexAdapter/internal/model"
	"dexAdapter/internal/serializer"
	"dexAdapter/internal/storage"
)

func runEvents(cmd *cobra.Command, _ []string) error {
	network, _ := cmd.Flags().GetString("network")
	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")
	out, _ := cmd.Flags().GetString("out")
	if network == "" {
		return fmt.Errorf("network is required")
	}
	if from > to {
		return fmt.Errorf("from %d is after to %d", from, to)
	}

	cfg, logger, ctx, stop, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	if _, ok := cfg.Network(network); !ok {
		return fmt.Errorf("network %q is not configured", network)
	}

	a, err := build(ctx, cfg, logger, buildOptions{})
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}
	defer a.Close()

	set, fetchErr := a.engine.GetAllEvents(ctx, network, from, to, cfg.PageSize)
	if fetchErr != nil {
		logger.Warn("event fetch incomplete, exporting partial result", zap.Error(fetchErr))
	}

	records, err := serializer.Events(set, func(pool common.Address) (model.Pool, error) {
		return a.resolver.ResolvePoolWithTokens(ctx, network, pool)
	})
	if err != nil {
		return errors.Join(fetchErr, fmt.Errorf("serialize events: %w", err))
	}
	if err := storage.NewJsonlStorage(out).PutEvents(records); err != nil {
		return fmt.Errorf("write events: %w", err)
	}

	logger.Info("events exported",
		zap.String("network", network),
		zap.Uint64("from", from),
		zap.Uint64("to", to),
		zap.Int("events", len(records)),
		zap.Int("skipped", set.Skipped),
		zap.String("out", out),
	)
	return fetchErr
}
