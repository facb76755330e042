package subgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/model"
	"dexAdapter/internal/upstream"
)

// Querier runs a GraphQL query and decodes its data.
type Querier interface {
	Query(ctx context.Context, ep upstream.Endpoint, req upstream.Request, out any) error
}

// Client reads one network's subgraph.
type Client struct {
	ep     upstream.Endpoint
	gql    Querier
	logger *zap.Logger
}

func New(ep upstream.Endpoint, gql Querier, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{ep: ep, gql: gql, logger: logger}
}

func (c *Client) Network() string {
	return c.ep.Network
}

func (c *Client) Endpoint() upstream.Endpoint {
	return c.ep
}

// LatestBlock returns the block the subgraph has indexed up to.
func (c *Client) LatestBlock(ctx context.Context) (model.Block, error) {
	var data struct {
		Meta *struct {
			Block struct {
				Number    Scalar `json:"number"`
				Timestamp Scalar `json:"timestamp"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := c.gql.Query(ctx, c.ep, upstream.Request{Query: latestBlockQuery}, &data); err != nil {
		return model.Block{}, err
	}
	if data.Meta == nil {
		return model.Block{}, fmt.Errorf("latest block: %w", model.ErrNotFound)
	}
	number, err := data.Meta.Block.Number.uint64("number")
	if err != nil {
		return model.Block{}, err
	}
	// Some graph-node versions leave the meta timestamp null.
	ts, err := data.Meta.Block.Timestamp.uint64Or("timestamp", 0)
	if err != nil {
		return model.Block{}, err
	}
	return model.Block{Number: number, Timestamp: ts}, nil
}

// Pool looks a pool up by address, tokens included.
func (c *Client) Pool(ctx context.Context, addr common.Address) (model.Pool, error) {
	var data struct {
		Pool *poolRecord `json:"pool"`
	}
	req := upstream.Request{Query: poolQuery, Variables: map[string]any{"id": entityID(addr)}}
	if err := c.gql.Query(ctx, c.ep, req, &data); err != nil {
		return model.Pool{}, err
	}
	if data.Pool == nil {
		return model.Pool{}, fmt.Errorf("pool %s on %s: %w", addr.Hex(), c.ep.Network, model.ErrNotFound)
	}
	pool, err := data.Pool.pool(c.ep.Network)
	if err != nil {
		return model.Pool{}, fmt.Errorf("parse pool %s: %w", addr.Hex(), err)
	}
	if pool.TickSpacing == 0 {
		pool.TickSpacing = model.DefaultTickSpacing
	}
	pool.Refined = true
	return pool, nil
}

// Token looks a token up by address.
func (c *Client) Token(ctx context.Context, addr common.Address) (model.Token, error) {
	var data struct {
		Token *tokenRecord `json:"token"`
	}
	req := upstream.Request{Query: tokenQuery, Variables: map[string]any{"id": entityID(addr)}}
	if err := c.gql.Query(ctx, c.ep, req, &data); err != nil {
		return model.Token{}, err
	}
	if data.Token == nil {
		return model.Token{}, fmt.Errorf("token %s on %s: %w", addr.Hex(), c.ep.Network, model.ErrNotFound)
	}
	token, err := data.Token.token(c.ep.Network)
	if err != nil {
		return model.Token{}, fmt.Errorf("parse token %s: %w", addr.Hex(), err)
	}
	return token, nil
}

// PageRequest selects one page of transactions.
type PageRequest struct {
	FromBlock uint64
	ToBlock   uint64
	First     int
	LastID    string
}

// Page is one decoded page of transactions.
type Page struct {
	Events *model.EventSet
	// Pools are the pool descriptors embedded in the page's sub-events.
	Pools []model.Pool
	// Size is the number of transactions returned, before flattening.
	Size   int
	LastID string
}

// TransactionsPage fetches one page and flattens its sub-events. Sub-events
// that fail to parse are logged, counted and left out.
func (c *Client) TransactionsPage(ctx context.Context, version model.SchemaVersion, req PageRequest) (*Page, error) {
	switch version {
	case model.SchemaV2:
		return fetchPage[swapV2, mintV2, burnV2](ctx, c, TransactionsQuery(version), req)
	default:
		return fetchPage[swapV1, mintV1, burnV1](ctx, c, TransactionsQuery(model.SchemaV1), req)
	}
}

func fetchPage[S record[model.Swap], M record[model.Mint], B record[model.Burn]](ctx context.Context, c *Client, query string, req PageRequest) (*Page, error) {
	vars := map[string]any{
		"fromBlock": req.FromBlock,
		"toBlock":   req.ToBlock,
		"first":     req.First,
		"lastId":    req.LastID,
	}
	var data transactionsData[S, M, B]
	if err := c.gql.Query(ctx, c.ep, upstream.Request{Query: query, Variables: vars}, &data); err != nil {
		return nil, err
	}
	metrics.PagesFetched.WithLabelValues(c.ep.Network).Inc()

	page := &Page{Events: &model.EventSet{}, Size: len(data.Transactions)}
	pools := make(map[common.Address]model.Pool)
	remember := func(p model.Pool) {
		if cur, ok := pools[p.Address]; ok {
			p = cur.Merge(p)
		}
		pools[p.Address] = p
	}

	for _, tx := range data.Transactions {
		page.LastID = tx.ID
		header, err := tx.header()
		if err != nil {
			n := len(tx.Swaps) + len(tx.Mints) + len(tx.Burns)
			c.skip(page.Events, "transaction", tx.ID, err, n)
			continue
		}
		for _, r := range tx.Swaps {
			swap, pool, err := r.normalize(c.ep.Network, header)
			if err != nil {
				c.skip(page.Events, model.KindSwap.String(), r.recordID(), err, 1)
				continue
			}
			page.Events.Swaps = append(page.Events.Swaps, swap)
			remember(pool)
		}
		for _, r := range tx.Mints {
			mint, pool, err := r.normalize(c.ep.Network, header)
			if err != nil {
				c.skip(page.Events, model.KindMint.String(), r.recordID(), err, 1)
				continue
			}
			page.Events.Mints = append(page.Events.Mints, mint)
			remember(pool)
		}
		for _, r := range tx.Burns {
			burn, pool, err := r.normalize(c.ep.Network, header)
			if err != nil {
				c.skip(page.Events, model.KindBurn.String(), r.recordID(), err, 1)
				continue
			}
			page.Events.Burns = append(page.Events.Burns, burn)
			remember(pool)
		}
	}

	for _, p := range pools {
		page.Pools = append(page.Pools, p)
	}
	return page, nil
}

func (c *Client) skip(set *model.EventSet, kind, id string, err error, n int) {
	if n <= 0 {
		return
	}
	set.Skipped += n
	metrics.RecordsSkipped.WithLabelValues(c.ep.Network, kind).Add(float64(n))
	c.logger.Warn("skip malformed subgraph record",
		zap.String("network", c.ep.Network),
		zap.String("kind", kind),
		zap.String("id", id),
		zap.Int("count", n),
		zap.Error(err),
	)
}

// entityID is the subgraph's id form of an address: lower-case hex.
func entityID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
