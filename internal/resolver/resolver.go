package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
)

// MetadataSource looks up descriptors on one network.
type MetadataSource interface {
	Pool(ctx context.Context, addr common.Address) (model.Pool, error)
	Token(ctx context.Context, addr common.Address) (model.Token, error)
}

// PoolSink mirrors pool descriptors somewhere outside the process.
type PoolSink interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// Backend is the per-network lookup stack.
type Backend struct {
	Metadata  MetadataSource
	Discovery *Discovery
}

type key struct {
	network string
	addr    common.Address
}

// Resolver owns the pool and token caches. Entries are filled lazily and
// kept for the life of the process. partial marks tokens only known from a
// pool descriptor and discovered holds the factories whose full scan has
// succeeded.
type Resolver struct {
	logger *zap.Logger
	sink   PoolSink

	mu         sync.RWMutex
	backends   map[string]Backend
	pools      map[key]model.Pool
	tokens     map[key]model.Token
	partial    map[key]bool
	discovered map[key]bool
}

func New(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:     logger,
		backends:   make(map[string]Backend),
		pools:      make(map[key]model.Pool),
		tokens:     make(map[key]model.Token),
		partial:    make(map[key]bool),
		discovered: make(map[key]bool),
	}
}

// Register installs the backend of a network.
func (r *Resolver) Register(network string, backend Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[network] = backend
}

// SetPoolSink mirrors pools learned from discovery and explicit lookups.
func (r *Resolver) SetPoolSink(sink PoolSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *Resolver) backend(network string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[network]
	if !ok || b.Metadata == nil {
		return Backend{}, fmt.Errorf("network %q not configured: %w", network, model.ErrNotFound)
	}
	return b, nil
}

// ResolveToken returns the token descriptor, looking it up on a miss. Tokens
// only seen inside a pool descriptor are looked up once; if that fails the
// cached descriptor is returned.
func (r *Resolver) ResolveToken(ctx context.Context, network string, addr common.Address) (model.Token, error) {
	k := key{network, addr}
	r.mu.RLock()
	cached, ok := r.tokens[k]
	partial := r.partial[k]
	r.mu.RUnlock()
	if ok && !partial {
		metrics.ResolverLookups.WithLabelValues(network, "token", "hit").Inc()
		return cached, nil
	}

	b, err := r.backend(network)
	if err != nil {
		return model.Token{}, err
	}
	token, err := b.Metadata.Token(ctx, addr)
	if err != nil {
		metrics.ResolverLookups.WithLabelValues(network, "token", "error").Inc()
		if ok {
			r.logger.Warn("token lookup failed, using cached descriptor",
				zap.String("network", network),
				zap.String("token", addr.Hex()),
				zap.Error(err),
			)
			return cached, nil
		}
		return model.Token{}, fmt.Errorf("resolve token %s: %w", addr.Hex(), err)
	}
	metrics.ResolverLookups.WithLabelValues(network, "token", "miss").Inc()

	r.mu.Lock()
	r.tokens[k] = token
	delete(r.partial, k)
	r.mu.Unlock()
	return token, nil
}

// ResolvePool returns the pool descriptor. Pools only known from a creation
// log or an event are refreshed from the backend once; if that refresh fails
// the partial descriptor is returned.
func (r *Resolver) ResolvePool(ctx context.Context, network string, addr common.Address) (model.Pool, error) {
	k := key{network, addr}
	r.mu.RLock()
	cached, ok := r.pools[k]
	r.mu.RUnlock()
	if ok && cached.Refined {
		metrics.ResolverLookups.WithLabelValues(network, "pool", "hit").Inc()
		return cached, nil
	}

	b, err := r.backend(network)
	if err != nil {
		return model.Pool{}, err
	}
	fresh, err := b.Metadata.Pool(ctx, addr)
	if err != nil {
		metrics.ResolverLookups.WithLabelValues(network, "pool", "error").Inc()
		if ok {
			r.logger.Warn("pool refresh failed, using cached descriptor",
				zap.String("network", network),
				zap.String("pool", addr.Hex()),
				zap.Error(err),
			)
			return cached, nil
		}
		return model.Pool{}, fmt.Errorf("resolve pool %s: %w", addr.Hex(), err)
	}
	metrics.ResolverLookups.WithLabelValues(network, "pool", "miss").Inc()

	pool := r.Remember(fresh)
	r.mirror(ctx, []model.Pool{pool})
	return pool, nil
}

// ResolvePoolWithTokens resolves the pool and both of its tokens.
func (r *Resolver) ResolvePoolWithTokens(ctx context.Context, network string, addr common.Address) (model.Pool, error) {
	pool, err := r.ResolvePool(ctx, network, addr)
	if err != nil {
		return model.Pool{}, err
	}
	if pool.TokensResolved() {
		return pool, nil
	}

	for _, side := range []*model.PoolToken{&pool.Token0, &pool.Token1} {
		if side.Resolved() {
			continue
		}
		token, err := r.ResolveToken(ctx, network, side.Address)
		if err != nil {
			return model.Pool{}, fmt.Errorf("pool %s: %w", addr.Hex(), err)
		}
		side.Meta = &token
	}
	return r.Remember(pool), nil
}

// Remember merges pool into the cache and returns the merged record. Token
// descriptors it carries are cached as well; those without a supply are
// kept as partial.
func (r *Resolver) Remember(pool model.Pool) model.Pool {
	k := key{pool.Network, pool.Address}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pools[k]; ok {
		pool = cur.Merge(pool)
	}
	r.pools[k] = pool
	for _, side := range []model.PoolToken{pool.Token0, pool.Token1} {
		if side.Meta == nil {
			continue
		}
		tk := key{pool.Network, side.Address}
		switch _, ok := r.tokens[tk]; {
		case side.Meta.TotalSupply != nil:
			r.tokens[tk] = *side.Meta
			delete(r.partial, tk)
		case !ok:
			r.tokens[tk] = *side.Meta
			r.partial[tk] = true
		}
	}
	metrics.PoolsKnown.WithLabelValues(pool.Network).Set(float64(r.countLocked(pool.Network)))
	return pool
}

// Pools returns a snapshot of the pools known on network.
func (r *Resolver) Pools(network string) []model.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Pool
	for k, p := range r.pools {
		if k.network == network {
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) countLocked(network string) int {
	n := 0
	for k := range r.pools {
		if k.network == network {
			n++
		}
	}
	return n
}

func (r *Resolver) mirror(ctx context.Context, pools []model.Pool) {
	r.mu.RLock()
	sink := r.sink
	r.mu.RUnlock()
	if sink == nil || len(pools) == 0 {
		return
	}
	if err := sink.UpsertPools(ctx, pools); err != nil {
		r.logger.Warn("mirror pools failed", zap.Int("pools", len(pools)), zap.Error(err))
	}
}
