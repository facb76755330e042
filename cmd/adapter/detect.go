package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dexAdapter/internal/model"
)

func runDetect(cmd *cobra.Command, _ []string) error {
	cfg, logger, ctx, stop, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer logger.Sync()

	a, err := build(ctx, cfg, logger, buildOptions{})
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}
	defer a.Close()

	names := make([]string, 0, len(a.subgraphs))
	for name := range a.subgraphs {
		names = append(names, name)
	}
	if len(names) == 0 {
		return fmt.Errorf("no subgraph networks configured")
	}
	sort.Strings(names)

	versions := make([]model.SchemaVersion, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(names))
	for i, name := range names {
		g.Go(func() error {
			versions[i] = a.detector.DetectSchema(gctx, a.subgraphs[name])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, name := range names {
		fmt.Fprintf(out, "%s\t%s\n", name, versions[i])
	}
	return nil
}
