package events

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
)

// DefaultPageSize is the number of transactions requested per subgraph page.
const DefaultPageSize = 1000

// Range is a fetch request over an inclusive block range.
type Range struct {
	FromBlock uint64
	ToBlock   uint64
	Kinds     model.EventKind
	PageSize  int
}

// Source produces the pool events of one network.
type Source interface {
	Network() string
	// Fetch returns the events in r. On an upstream failure it returns what
	// was collected so far together with the error.
	Fetch(ctx context.Context, r Range) (*model.EventSet, error)
	LatestBlock(ctx context.Context) (model.Block, error)
}

// Engine routes range requests to the source of each network and returns
// ordered results.
type Engine struct {
	pageSize int
	logger   *zap.Logger

	mu      sync.RWMutex
	sources map[string]Source
	order   []string
}

func NewEngine(pageSize int, logger *zap.Logger) *Engine {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{pageSize: pageSize, logger: logger, sources: make(map[string]Source)}
}

// Register adds a source. Networks keep their registration order.
func (e *Engine) Register(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sources[src.Network()]; !ok {
		e.order = append(e.order, src.Network())
	}
	e.sources[src.Network()] = src
}

// Networks lists registered networks in registration order.
func (e *Engine) Networks() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.order)
}

func (e *Engine) source(network string) (Source, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	src, ok := e.sources[network]
	if !ok {
		return nil, fmt.Errorf("network %q not configured: %w", network, model.ErrNotFound)
	}
	return src, nil
}

// LatestBlock returns the head block of network.
func (e *Engine) LatestBlock(ctx context.Context, network string) (model.Block, error) {
	src, err := e.source(network)
	if err != nil {
		return model.Block{}, err
	}
	return src.LatestBlock(ctx)
}

// GetAllEvents returns swaps, mints and burns in [fromBlock, toBlock]. A
// pageSize of zero uses the engine default.
func (e *Engine) GetAllEvents(ctx context.Context, network string, fromBlock, toBlock uint64, pageSize int) (*model.EventSet, error) {
	return e.fetch(ctx, network, Range{FromBlock: fromBlock, ToBlock: toBlock, Kinds: model.AllKinds, PageSize: pageSize})
}

func (e *Engine) GetSwapEvents(ctx context.Context, network string, fromBlock, toBlock uint64) ([]model.Swap, error) {
	set, err := e.fetch(ctx, network, Range{FromBlock: fromBlock, ToBlock: toBlock, Kinds: model.KindSwap})
	return set.Swaps, err
}

func (e *Engine) GetMintEvents(ctx context.Context, network string, fromBlock, toBlock uint64) ([]model.Mint, error) {
	set, err := e.fetch(ctx, network, Range{FromBlock: fromBlock, ToBlock: toBlock, Kinds: model.KindMint})
	return set.Mints, err
}

func (e *Engine) GetBurnEvents(ctx context.Context, network string, fromBlock, toBlock uint64) ([]model.Burn, error) {
	set, err := e.fetch(ctx, network, Range{FromBlock: fromBlock, ToBlock: toBlock, Kinds: model.KindBurn})
	return set.Burns, err
}

// fetch always returns a non-nil, sorted set.
func (e *Engine) fetch(ctx context.Context, network string, r Range) (*model.EventSet, error) {
	if r.FromBlock > r.ToBlock {
		return &model.EventSet{}, fmt.Errorf("fromBlock %d is after toBlock %d", r.FromBlock, r.ToBlock)
	}
	if r.PageSize <= 0 {
		r.PageSize = e.pageSize
	}
	if r.Kinds == 0 {
		r.Kinds = model.AllKinds
	}
	src, err := e.source(network)
	if err != nil {
		return &model.EventSet{}, err
	}

	start := time.Now()
	set, err := src.Fetch(ctx, r)
	if set == nil {
		set = &model.EventSet{}
	}
	set.Keep(r.Kinds)
	set.Sort()

	metrics.EventsFetched.WithLabelValues(network, model.KindSwap.String()).Add(float64(len(set.Swaps)))
	metrics.EventsFetched.WithLabelValues(network, model.KindMint.String()).Add(float64(len(set.Mints)))
	metrics.EventsFetched.WithLabelValues(network, model.KindBurn.String()).Add(float64(len(set.Burns)))

	fields := []zap.Field{
		zap.String("network", network),
		zap.Uint64("from", r.FromBlock),
		zap.Uint64("to", r.ToBlock),
		zap.Int("events", set.Len()),
		zap.Int("skipped", set.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		e.logger.Warn("event fetch incomplete", append(fields, zap.Error(err))...)
		return set, err
	}
	e.logger.Debug("events fetched", fields...)
	return set, nil
}
