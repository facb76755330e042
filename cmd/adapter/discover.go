package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexAdapter/internal/scan"
)

func runDiscover(cmd *cobra.Command, _ []string) error {
	network, _ := cmd.Flags().GetString("network")
	from, _ := cmd.Flags().GetUint64("from")
	to, _ := cmd.Flags().GetUint64("to")
	if network == "" {
		return fmt.Errorf("network is required")
	}

	cfg, logger, ctx, stop, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	n, ok := cfg.Network(network)
	if !ok {
		return fmt.Errorf("network %q is not configured", network)
	}
	if n.RPCURL == "" || n.SubgraphURL != "" {
		return fmt.Errorf("network %q is not an RPC network", network)
	}

	a, err := build(ctx, cfg, logger, buildOptions{})
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}
	defer a.Close()

	var rng *scan.BlockRange
	if cmd.Flags().Changed("from") || cmd.Flags().Changed("to") {
		if to == 0 {
			head, err := a.engine.LatestBlock(ctx, network)
			if err != nil {
				return fmt.Errorf("latest block: %w", err)
			}
			to = head.Number
		}
		if from > to {
			return fmt.Errorf("from %d is after to %d", from, to)
		}
		rng = &scan.BlockRange{From: from, To: to}
	}

	pools, err := a.resolver.DiscoverPools(ctx, network, rng)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, p := range pools {
		fmt.Fprintln(out, p.Hex())
	}
	logger.Info("discovery done", zap.String("network", network), zap.Int("pools", len(pools)))
	return nil
}
