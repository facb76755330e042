package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dexAdapter/internal/model"
	"dexAdapter/internal/subgraph"
	"dexAdapter/internal/upstream"
)

// Pager is the subgraph surface used by SubgraphSource.
type Pager interface {
	Endpoint() upstream.Endpoint
	TransactionsPage(ctx context.Context, version model.SchemaVersion, req subgraph.PageRequest) (*subgraph.Page, error)
	LatestBlock(ctx context.Context) (model.Block, error)
}

// SchemaDetector resolves the schema version of an endpoint.
type SchemaDetector interface {
	DetectSchema(ctx context.Context, ep upstream.Endpoint) model.SchemaVersion
}

// PoolRememberer receives pool descriptors found in events.
type PoolRememberer interface {
	Remember(pool model.Pool) model.Pool
}

// SubgraphSource pages through the transactions of a subgraph.
type SubgraphSource struct {
	pager    Pager
	detector SchemaDetector
	pools    PoolRememberer
	logger   *zap.Logger
}

func NewSubgraphSource(pager Pager, detector SchemaDetector, pools PoolRememberer, logger *zap.Logger) *SubgraphSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubgraphSource{pager: pager, detector: detector, pools: pools, logger: logger}
}

func (s *SubgraphSource) Network() string {
	return s.pager.Endpoint().Network
}

func (s *SubgraphSource) LatestBlock(ctx context.Context) (model.Block, error) {
	return s.pager.LatestBlock(ctx)
}

// Fetch pages by transaction id until a page comes back empty or short.
func (s *SubgraphSource) Fetch(ctx context.Context, r Range) (*model.EventSet, error) {
	ep := s.pager.Endpoint()
	version := s.detector.DetectSchema(ctx, ep)

	set := &model.EventSet{}
	lastID := ""
	for pageNo := 0; ; pageNo++ {
		if err := ctx.Err(); err != nil {
			return set, err
		}

		page, err := s.pager.TransactionsPage(ctx, version, subgraph.PageRequest{
			FromBlock: r.FromBlock,
			ToBlock:   r.ToBlock,
			First:     r.PageSize,
			LastID:    lastID,
		})
		if err != nil {
			return set, fmt.Errorf("transactions page %d after %q: %w", pageNo, lastID, err)
		}

		page.Events.Keep(r.Kinds)
		set.Append(page.Events)
		if s.pools != nil {
			for _, p := range page.Pools {
				s.pools.Remember(p)
			}
		}

		s.logger.Debug("transactions page",
			zap.String("network", ep.Network),
			zap.Int("page", pageNo),
			zap.Int("transactions", page.Size),
			zap.String("last_id", page.LastID),
		)

		if page.Size == 0 {
			return set, nil
		}
		if page.LastID <= lastID {
			return set, fmt.Errorf("pagination cursor did not advance past %q", lastID)
		}
		lastID = page.LastID
		if page.Size < r.PageSize {
			return set, nil
		}
	}
}
