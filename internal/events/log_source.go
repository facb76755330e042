package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexAdapter/internal/dex"
	"dexAdapter/internal/model"
	"dexAdapter/internal/scan"
)

// PoolIndex lists and describes the pools of a network.
type PoolIndex interface {
	DiscoverPools(ctx context.Context, network string, rng *scan.BlockRange) ([]common.Address, error)
	ResolvePool(ctx context.Context, network string, addr common.Address) (model.Pool, error)
}

// EventQuerier fetches and decodes one event kind of one pool.
type EventQuerier interface {
	Query(ctx context.Context, pool common.Address, kind model.EventKind, from, to uint64) (*model.EventSet, error)
}

// ChainReader is the RPC surface used to complete decoded logs.
type ChainReader interface {
	dex.Caller
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	TransactionOrigin(ctx context.Context, txHash common.Hash) (common.Address, error)
}

// LogSourceConfig configures a LogSource.
type LogSourceConfig struct {
	Network         string
	IncludeReserves bool
}

// LogSource reads pool events straight from chain logs.
type LogSource struct {
	cfg     LogSourceConfig
	pools   PoolIndex
	querier EventQuerier
	chain   ChainReader
	logger  *zap.Logger
}

func NewLogSource(cfg LogSourceConfig, pools PoolIndex, querier EventQuerier, chain ChainReader, logger *zap.Logger) *LogSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSource{cfg: cfg, pools: pools, querier: querier, chain: chain, logger: logger}
}

func (s *LogSource) Network() string {
	return s.cfg.Network
}

func (s *LogSource) LatestBlock(ctx context.Context) (model.Block, error) {
	number, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return model.Block{}, fmt.Errorf("latest block: %w", err)
	}
	ts, err := s.chain.BlockTimestamp(ctx, number)
	if err != nil {
		return model.Block{}, fmt.Errorf("block %d timestamp: %w", number, err)
	}
	return model.Block{Number: number, Timestamp: ts}, nil
}

// Fetch queries every known pool for every requested kind, then fills in
// block timestamps, transaction origins and, when enabled, reserves.
func (s *LogSource) Fetch(ctx context.Context, r Range) (*model.EventSet, error) {
	pools, err := s.pools.DiscoverPools(ctx, s.cfg.Network, nil)
	if err != nil {
		return &model.EventSet{}, fmt.Errorf("discover pools: %w", err)
	}

	set := &model.EventSet{}
	var fetchErr error
fetch:
	for _, pool := range pools {
		for _, kind := range []model.EventKind{model.KindSwap, model.KindMint, model.KindBurn} {
			if !r.Kinds.Has(kind) {
				continue
			}
			part, err := s.querier.Query(ctx, pool, kind, r.FromBlock, r.ToBlock)
			set.Append(part)
			if err != nil {
				fetchErr = fmt.Errorf("pool %s %s logs: %w", pool.Hex(), kind, err)
				break fetch
			}
		}
	}

	if err := s.enrich(ctx, set); err != nil && fetchErr == nil {
		fetchErr = err
	}
	return set, fetchErr
}

// enrich works through the events in key order. When a lookup fails the
// events from the failing one on are dropped, so a partial set only holds
// complete records.
func (s *LogSource) enrich(ctx context.Context, set *model.EventSet) error {
	metas := make([]*model.EventMeta, 0, set.Len())
	for i := range set.Swaps {
		metas = append(metas, &set.Swaps[i].EventMeta)
	}
	for i := range set.Mints {
		metas = append(metas, &set.Mints[i].EventMeta)
	}
	for i := range set.Burns {
		metas = append(metas, &set.Burns[i].EventMeta)
	}
	model.SortByKey(metas)

	timestamps := make(map[uint64]uint64)
	origins := make(map[common.Hash]common.Address)
	for _, m := range metas {
		if err := s.enrichOne(ctx, m, timestamps, origins); err != nil {
			set.Truncate(m.Key())
			return err
		}
	}
	return nil
}

func (s *LogSource) enrichOne(ctx context.Context, m *model.EventMeta, timestamps map[uint64]uint64, origins map[common.Hash]common.Address) error {
	ts, ok := timestamps[m.BlockNumber]
	if !ok {
		var err error
		if ts, err = s.chain.BlockTimestamp(ctx, m.BlockNumber); err != nil {
			return fmt.Errorf("block %d timestamp: %w", m.BlockNumber, err)
		}
		timestamps[m.BlockNumber] = ts
	}

	origin, ok := origins[m.TxHash]
	if !ok {
		var err error
		origin, err = s.chain.TransactionOrigin(ctx, m.TxHash)
		switch {
		case errors.Is(err, ethereum.NotFound):
			s.logger.Warn("transaction receipt missing", zap.String("network", s.cfg.Network), zap.String("tx", m.TxHash.Hex()))
		case err != nil:
			return fmt.Errorf("tx %s origin: %w", m.TxHash.Hex(), err)
		}
		origins[m.TxHash] = origin
	}
	m.BlockTimestamp = ts
	m.Origin = origin

	if s.cfg.IncludeReserves {
		s.attachReserves(ctx, m)
	}
	return nil
}

// attachReserves is best effort; events keep nil reserves on failure.
func (s *LogSource) attachReserves(ctx context.Context, m *model.EventMeta) {
	pool, err := s.pools.ResolvePool(ctx, s.cfg.Network, m.Pool)
	if err != nil {
		s.logger.Debug("reserves skipped", zap.String("pool", m.Pool.Hex()), zap.Error(err))
		return
	}
	r0, r1, err := dex.PoolReserves(ctx, s.chain, m.Pool, pool.Token0.Address, pool.Token1.Address, m.BlockNumber)
	if err != nil {
		s.logger.Debug("reserves unavailable", zap.String("pool", m.Pool.Hex()), zap.Uint64("block", m.BlockNumber), zap.Error(err))
		return
	}
	m.Reserves0, m.Reserves1 = &r0, &r1
}
