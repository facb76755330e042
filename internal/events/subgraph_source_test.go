package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dexAdapter/internal/model"
	"dexAdapter/internal/resolver"
	"dexAdapter/internal/schema"
	"dexAdapter/internal/subgraph"
	"dexAdapter/internal/upstream"
)

const (
	poolID = "0x55caabb0d2b704fd0ef8192a7e35d8837e678207"
	userID = "0x00000000000000000000000000000000000000aa"
)

func poolJSON() string {
	return `{"id":"` + poolID + `","fee":"500",
		"token0":{"id":"0x2791bca1f2de4661ed88a30c99a7a9449aa84174","symbol":"USDC","name":"USD Coin","decimals":"6"},
		"token1":{"id":"0x7ceb23fd6bc0add59e62ac25578270cff1b9f619","symbol":"WETH","name":"Wrapped Ether","decimals":"18"}}`
}

func txID(n int) string {
	return fmt.Sprintf("0x%064x", n)
}

func swapJSON(logIndex int, amount0 string, reserves bool) string {
	s := fmt.Sprintf(`{"id":"s%d","pool":%s,"sender":"%s","origin":"%s","recipient":"%s","amount0":"%s","amount1":"-1.5",
		"price":"79228162514264337593543950336","liquidity":"1","tick":"0","logIndex":"%d"`,
		logIndex, poolJSON(), userID, userID, userID, amount0, logIndex)
	if reserves {
		s += `,"reserves0":"10","reserves1":"20"`
	}
	return s + "}"
}

func mintJSON(logIndex int) string {
	return fmt.Sprintf(`{"id":"m%d","pool":%s,"owner":"%s","sender":"%s","origin":"%s","amount0":"1","amount1":"2",
		"tickLower":"-60","tickUpper":"60","amount":"100","logIndex":"%d"}`, logIndex, poolJSON(), userID, userID, userID, logIndex)
}

type tx struct {
	n     int
	block int
	index int
	swaps []string
	mints []string
	burns []string
}

func (t tx) json() string {
	return fmt.Sprintf(`{"id":"%s","index":"%d","blockNumber":"%d","timestamp":"%d","swaps":[%s],"mints":[%s],"burns":[%s]}`,
		txID(t.n), t.index, t.block, 1700000000+t.block, strings.Join(t.swaps, ","), strings.Join(t.mints, ","), strings.Join(t.burns, ","))
}

// fakeSubgraph serves transactions ordered by id, honouring first and lastId.
type fakeSubgraph struct {
	t    *testing.T
	txs  []tx
	fail map[int]bool

	mu       sync.Mutex
	requests int
}

func (f *fakeSubgraph) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	call := f.requests
	f.mu.Unlock()

	if f.fail[call] {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	var req upstream.Request
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	first := int(req.Variables["first"].(float64))
	lastID := req.Variables["lastId"].(string)

	var out []string
	for _, t := range f.txs {
		if txID(t.n) > lastID && len(out) < first {
			out = append(out, t.json())
		}
	}
	_, _ = fmt.Fprintf(w, `{"data":{"transactions":[%s]}}`, strings.Join(out, ","))
}

func (f *fakeSubgraph) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func newSource(t *testing.T, fs *fakeSubgraph, version model.SchemaVersion, logger *zap.Logger) (*SubgraphSource, *resolver.Resolver) {
	t.Helper()
	fs.t = t
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	gql := upstream.NewClient(upstream.NewSession(5*time.Second), upstream.ClientConfig{}, logger)
	ep := upstream.Endpoint{Network: "polygon", URL: srv.URL}
	detector := schema.NewDetector(gql, logger)
	detector.SetOverride(ep, version)
	res := resolver.New(logger)
	return NewSubgraphSource(subgraph.New(ep, gql, logger), detector, res, logger), res
}

func TestSubgraphPaginationStopsOnEmptyPage(t *testing.T) {
	fs := &fakeSubgraph{txs: []tx{
		{n: 1, block: 10, swaps: []string{swapJSON(0, "1", false)}},
		{n: 2, block: 11, swaps: []string{swapJSON(0, "1", false)}},
		{n: 3, block: 12, swaps: []string{swapJSON(0, "1", false)}},
		{n: 4, block: 13, swaps: []string{swapJSON(0, "1", false)}},
	}}
	src, _ := newSource(t, fs, model.SchemaV1, nil)

	set, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 100, Kinds: model.AllKinds, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, set.Swaps, 4)
	assert.Equal(t, 3, fs.count())
}

func TestSubgraphPaginationNoRequestAfterShortPage(t *testing.T) {
	fs := &fakeSubgraph{txs: []tx{
		{n: 1, block: 10, swaps: []string{swapJSON(0, "1", false)}},
		{n: 2, block: 11, mints: []string{mintJSON(1)}},
	}}
	src, _ := newSource(t, fs, model.SchemaV1, nil)

	set, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 100, Kinds: model.AllKinds, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, set.Swaps, 1)
	assert.Len(t, set.Mints, 1)
	assert.Equal(t, 1, fs.count())
}

func TestSubgraphSkipsOneMalformedSubEvent(t *testing.T) {
	var swaps []string
	for i := 0; i < 10; i++ {
		amount := "1"
		if i == 4 {
			amount = "not-a-number"
		}
		swaps = append(swaps, swapJSON(i, amount, false))
	}
	fs := &fakeSubgraph{txs: []tx{{n: 1, block: 10, swaps: swaps}}}

	core, logs := observer.New(zapcore.WarnLevel)
	src, _ := newSource(t, fs, model.SchemaV1, zap.New(core))

	set, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 100, Kinds: model.AllKinds, PageSize: 100})
	require.NoError(t, err)
	assert.Len(t, set.Swaps, 9)
	assert.Equal(t, 1, set.Skipped)
	assert.Equal(t, 1, logs.FilterMessage("skip malformed subgraph record").Len())
}

func TestSubgraphPartialResultOnPageFailure(t *testing.T) {
	fs := &fakeSubgraph{
		txs: []tx{
			{n: 1, block: 12, swaps: []string{swapJSON(0, "1", false)}},
			{n: 2, block: 10, swaps: []string{swapJSON(0, "1", false)}},
			{n: 3, block: 11, swaps: []string{swapJSON(0, "1", false)}},
		},
		fail: map[int]bool{2: true},
	}
	src, _ := newSource(t, fs, model.SchemaV1, nil)
	engine := NewEngine(2, nil)
	engine.Register(src)

	set, err := engine.GetAllEvents(context.Background(), "polygon", 1, 100, 0)
	require.Error(t, err)
	require.Len(t, set.Swaps, 2)
	assert.Equal(t, uint64(10), set.Swaps[0].BlockNumber)
	assert.Equal(t, uint64(12), set.Swaps[1].BlockNumber)
}

func TestSubgraphResultsAreSorted(t *testing.T) {
	fs := &fakeSubgraph{txs: []tx{
		{n: 1, block: 20, index: 1, swaps: []string{swapJSON(5, "1", false), swapJSON(2, "1", false)}},
		{n: 2, block: 20, index: 0, swaps: []string{swapJSON(9, "1", false)}},
		{n: 3, block: 19, index: 7, swaps: []string{swapJSON(1, "1", false)}},
	}}
	src, _ := newSource(t, fs, model.SchemaV1, nil)
	engine := NewEngine(10, nil)
	engine.Register(src)

	swaps, err := engine.GetSwapEvents(context.Background(), "polygon", 1, 100)
	require.NoError(t, err)
	require.True(t, model.IsSortedByKey(swaps))

	var keys []model.OrderKey
	for _, s := range swaps {
		keys = append(keys, s.Key())
	}
	assert.Equal(t, []model.OrderKey{
		{BlockNumber: 19, TxIndex: 7, LogIndex: 1},
		{BlockNumber: 20, TxIndex: 0, LogIndex: 9},
		{BlockNumber: 20, TxIndex: 1, LogIndex: 2},
		{BlockNumber: 20, TxIndex: 1, LogIndex: 5},
	}, keys)

	again := append([]model.Swap(nil), swaps...)
	model.SortByKey(again)
	assert.Equal(t, swaps, again)
}

func TestSubgraphSchemaVersionControlsReserves(t *testing.T) {
	fsV1 := &fakeSubgraph{txs: []tx{{n: 1, block: 10, swaps: []string{swapJSON(0, "1", false)}}}}
	srcV1, _ := newSource(t, fsV1, model.SchemaV1, nil)
	set, err := srcV1.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 100, Kinds: model.AllKinds, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, set.Swaps, 1)
	assert.False(t, set.Swaps[0].HasReserves())

	fsV2 := &fakeSubgraph{txs: []tx{{n: 1, block: 10, swaps: []string{swapJSON(0, "1", true)}}}}
	srcV2, _ := newSource(t, fsV2, model.SchemaV2, nil)
	set, err = srcV2.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 100, Kinds: model.AllKinds, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, set.Swaps, 1)
	assert.True(t, set.Swaps[0].HasReserves())
}

func TestSubgraphRemembersEmbeddedPools(t *testing.T) {
	fs := &fakeSubgraph{txs: []tx{{n: 1, block: 10, swaps: []string{swapJSON(0, "1", false)}}}}
	src, res := newSource(t, fs, model.SchemaV1, nil)

	_, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 100, Kinds: model.AllKinds, PageSize: 10})
	require.NoError(t, err)
	pools := res.Pools("polygon")
	require.Len(t, pools, 1)
	assert.True(t, pools[0].TokensResolved())
	assert.Equal(t, "WETH", pools[0].Token1.Meta.Symbol)
}

type stuckPager struct{ calls int }

func (p *stuckPager) Endpoint() upstream.Endpoint { return upstream.Endpoint{Network: "base"} }

func (p *stuckPager) LatestBlock(context.Context) (model.Block, error) { return model.Block{}, nil }

func (p *stuckPager) TransactionsPage(context.Context, model.SchemaVersion, subgraph.PageRequest) (*subgraph.Page, error) {
	p.calls++
	return &subgraph.Page{Events: &model.EventSet{}, Size: 2, LastID: "0x01"}, nil
}

type fixedDetector model.SchemaVersion

func (d fixedDetector) DetectSchema(context.Context, upstream.Endpoint) model.SchemaVersion {
	return model.SchemaVersion(d)
}

func TestSubgraphCursorMustAdvance(t *testing.T) {
	pager := &stuckPager{}
	src := NewSubgraphSource(pager, fixedDetector(model.SchemaV1), nil, nil)

	_, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 2, Kinds: model.AllKinds, PageSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not advance")
	assert.Equal(t, 2, pager.calls)
}

func TestEngineRejectsInvertedRange(t *testing.T) {
	engine := NewEngine(10, nil)
	set, err := engine.GetAllEvents(context.Background(), "polygon", 10, 9, 0)
	require.Error(t, err)
	require.NotNil(t, set)
	assert.Zero(t, set.Len())
}

func TestEngineKindFilters(t *testing.T) {
	fs := &fakeSubgraph{txs: []tx{
		{n: 1, block: 10, swaps: []string{swapJSON(0, "1", false)}, mints: []string{mintJSON(1)}},
	}}
	src, _ := newSource(t, fs, model.SchemaV1, nil)
	engine := NewEngine(10, nil)
	engine.Register(src)

	mints, err := engine.GetMintEvents(context.Background(), "polygon", 1, 100)
	require.NoError(t, err)
	require.Len(t, mints, 1)
	assert.Equal(t, uint64(1), mints[0].LogIndex)

	burns, err := engine.GetBurnEvents(context.Background(), "polygon", 1, 100)
	require.NoError(t, err)
	assert.Empty(t, burns)

	_, err = engine.GetMintEvents(context.Background(), "arbitrum", 1, 100)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
