package dex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
	"dexAdapter/internal/scan"
)

// LogClient is the eth_getLogs surface of a chain client.
type LogClient interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Waiter throttles outgoing requests.
type Waiter interface {
	Wait(ctx context.Context) error
}

// LogFetcherConfig configures a LogFetcher.
type LogFetcherConfig struct {
	Network   string
	ChunkSize uint64
	Retry     scan.RetryPolicy
	Limiter   Waiter
}

// LogFetcher is the RPC backend of the upstream query client: it pulls logs
// in bounded block chunks and decodes them into pool events.
type LogFetcher struct {
	cfg     LogFetcherConfig
	client  LogClient
	decoder *PoolDecoder
	logger  *zap.Logger
}

func NewLogFetcher(cfg LogFetcherConfig, client LogClient, logger *zap.Logger) (*LogFetcher, error) {
	if client == nil {
		return nil, fmt.Errorf("log client is nil")
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 2000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := NewPoolDecoder()
	if err != nil {
		return nil, err
	}
	return &LogFetcher{cfg: cfg, client: client, decoder: decoder, logger: logger}, nil
}

// Logs returns every log matching addresses and topic0 in [from, to]. On a
// connectivity failure it returns the logs of the chunks already fetched
// together with the error.
func (f *LogFetcher) Logs(ctx context.Context, addresses []common.Address, topic0 common.Hash, from, to uint64) ([]types.Log, error) {
	ranges, err := scan.SplitRange(from, to, f.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	var out []types.Log
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		var logs []types.Log
		err := scan.Retry(ctx, f.cfg.Retry, func(ctx context.Context) error {
			if f.cfg.Limiter != nil {
				if err := f.cfg.Limiter.Wait(ctx); err != nil {
					return scan.Permanent(err)
				}
			}
			start := time.Now()
			var err error
			logs, err = f.client.FilterLogs(ctx, r.From, r.To, addresses, []common.Hash{topic0})
			metrics.UpstreamLatency.WithLabelValues(f.cfg.Network, "rpc").Observe(time.Since(start).Seconds())
			if err != nil {
				metrics.UpstreamRequests.WithLabelValues(f.cfg.Network, "rpc", "error").Inc()
				f.logger.Warn("filter logs failed",
					zap.String("network", f.cfg.Network),
					zap.Uint64("from", r.From),
					zap.Uint64("to", r.To),
					zap.Error(err),
				)
				return err
			}
			metrics.UpstreamRequests.WithLabelValues(f.cfg.Network, "rpc", "ok").Inc()
			return nil
		})
		if err != nil {
			return out, fmt.Errorf("filter logs %d-%d: %w", r.From, r.To, err)
		}
		out = append(out, logs...)
	}
	return out, nil
}

// Query fetches and decodes one event kind for one pool. Logs that fail to
// decode are skipped and counted; only connectivity failures are returned.
func (f *LogFetcher) Query(ctx context.Context, pool common.Address, kind model.EventKind, from, to uint64) (*model.EventSet, error) {
	topic, ok := f.decoder.Topic(kind)
	if !ok {
		return nil, fmt.Errorf("unsupported event kind %s", kind)
	}

	logs, fetchErr := f.Logs(ctx, []common.Address{pool}, topic, from, to)

	set := &model.EventSet{}
	for _, log := range logs {
		if log.Removed {
			continue
		}
		if err := f.decoder.Decode(f.cfg.Network, log, set); err != nil {
			set.Skipped++
			metrics.RecordsSkipped.WithLabelValues(f.cfg.Network, kind.String()).Inc()
			f.logger.Warn("skip undecodable log",
				zap.String("network", f.cfg.Network),
				zap.String("pool", pool.Hex()),
				zap.String("tx", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
		}
	}
	return set, fetchErr
}
