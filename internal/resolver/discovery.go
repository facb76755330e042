package resolver

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
	"dexAdapter/internal/scan"
)

// LogReader fetches logs over a block range in bounded chunks.
type LogReader interface {
	Logs(ctx context.Context, addresses []common.Address, topic0 common.Hash, from, to uint64) ([]types.Log, error)
}

// CreationDecoder turns a factory creation log into a pool.
type CreationDecoder interface {
	Topic() common.Hash
	Decode(network string, log types.Log) (model.Pool, error)
}

// Factory is one pool factory scanned during discovery.
type Factory struct {
	Version    string
	Address    common.Address
	StartBlock uint64
	Decoder    CreationDecoder
}

// Discovery finds pools from factory creation logs on an RPC network.
type Discovery struct {
	Factories []Factory
	Logs      LogReader
	Head      func(ctx context.Context) (uint64, error)
	// Window bounds rescans after the first full scan.
	Window uint64
}

// DiscoverPools scans the factories of network for created pools and returns
// every pool address known on it. Without rng the first call scans from each
// factory's start block and later calls only the last Window blocks. A
// factory that cannot be read is logged and skipped, and is scanned in full
// again on the next call.
func (r *Resolver) DiscoverPools(ctx context.Context, network string, rng *scan.BlockRange) ([]common.Address, error) {
	b, err := r.backend(network)
	if err != nil {
		return nil, err
	}
	if b.Discovery == nil || len(b.Discovery.Factories) == 0 {
		return r.poolAddresses(network), nil
	}
	d := b.Discovery

	var head uint64
	if rng == nil {
		if head, err = d.Head(ctx); err != nil {
			return nil, fmt.Errorf("discover pools on %s: head: %w", network, err)
		}
	}

	var found []model.Pool
	full := 0
	for _, f := range d.Factories {
		fk := key{network, f.Address}
		r.mu.RLock()
		first := !r.discovered[fk]
		r.mu.RUnlock()
		if first && rng == nil {
			full++
		}

		window := scanWindow(f, rng, head, d.Window, first)
		if window.To < window.From {
			continue
		}

		logs, err := d.Logs.Logs(ctx, []common.Address{f.Address}, f.Decoder.Topic(), window.From, window.To)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("factory scan failed",
				zap.String("network", network),
				zap.String("factory", f.Address.Hex()),
				zap.String("version", f.Version),
				zap.Uint64("from", window.From),
				zap.Uint64("to", window.To),
				zap.Error(err),
			)
			continue
		}
		if rng == nil && first {
			r.mu.Lock()
			r.discovered[fk] = true
			r.mu.Unlock()
		}

		for _, log := range logs {
			if log.Removed {
				continue
			}
			pool, err := f.Decoder.Decode(network, log)
			if err != nil {
				metrics.RecordsSkipped.WithLabelValues(network, "pool_created").Inc()
				r.logger.Warn("skip undecodable creation log",
					zap.String("network", network),
					zap.String("tx", log.TxHash.Hex()),
					zap.Uint("log_index", log.Index),
					zap.Error(err),
				)
				continue
			}
			found = append(found, r.Remember(pool))
		}
	}

	r.logger.Info("pools discovered",
		zap.String("network", network),
		zap.Int("found", len(found)),
		zap.Int("full_scans", full),
	)
	r.mirror(ctx, found)
	return r.poolAddresses(network), nil
}

func scanWindow(f Factory, rng *scan.BlockRange, head, window uint64, first bool) scan.BlockRange {
	if rng != nil {
		from := rng.From
		if from < f.StartBlock {
			from = f.StartBlock
		}
		return scan.BlockRange{From: from, To: rng.To}
	}
	if first {
		return scan.BlockRange{From: f.StartBlock, To: head}
	}
	return scan.RecentWindow(head, window, f.StartBlock)
}

func (r *Resolver) poolAddresses(network string) []common.Address {
	pools := r.Pools(network)
	out := make([]common.Address, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Address)
	}
	slices.SortFunc(out, func(a, b common.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}
