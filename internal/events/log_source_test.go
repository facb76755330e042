package events

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dexAdapter/internal/model"
	"dexAdapter/internal/scan"
)

var (
	rpcPoolA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	rpcPoolB = common.HexToAddress("0x1000000000000000000000000000000000000002")
	originA  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

type fakePools struct {
	addrs []common.Address
}

func (f *fakePools) DiscoverPools(context.Context, string, *scan.BlockRange) ([]common.Address, error) {
	return f.addrs, nil
}

func (f *fakePools) ResolvePool(_ context.Context, network string, addr common.Address) (model.Pool, error) {
	return model.Pool{Network: network, Address: addr}, nil
}

type fakeQuerier struct {
	events map[common.Address]*model.EventSet
	failOn common.Address
	calls  []model.EventKind
}

func (f *fakeQuerier) Query(_ context.Context, pool common.Address, kind model.EventKind, _, _ uint64) (*model.EventSet, error) {
	f.calls = append(f.calls, kind)
	if pool == f.failOn {
		return &model.EventSet{}, errors.New("connection refused")
	}
	src := f.events[pool]
	out := &model.EventSet{}
	switch kind {
	case model.KindSwap:
		out.Swaps = append(out.Swaps, src.Swaps...)
	case model.KindMint:
		out.Mints = append(out.Mints, src.Mints...)
	case model.KindBurn:
		out.Burns = append(out.Burns, src.Burns...)
	}
	return out, nil
}

type fakeChain struct {
	timestampCalls int
	originCalls    int
	missing        common.Hash
	failBlock      uint64
}

func (f *fakeChain) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return 500, nil }

func (f *fakeChain) BlockTimestamp(_ context.Context, n uint64) (uint64, error) {
	f.timestampCalls++
	if n == f.failBlock {
		return 0, errors.New("header unavailable")
	}
	return 1000 + n, nil
}

func (f *fakeChain) TransactionOrigin(_ context.Context, h common.Hash) (common.Address, error) {
	f.originCalls++
	if h == f.missing {
		return common.Address{}, ethereum.NotFound
	}
	return originA, nil
}

func meta(pool common.Address, block, tx, log uint64) model.EventMeta {
	return model.EventMeta{
		Network: "base", Pool: pool, BlockNumber: block, TxIndex: tx, LogIndex: log,
		TxHash: common.BigToHash(new(big.Int).SetUint64(block*100 + tx)),
	}
}

func TestLogSourceFetchEnriches(t *testing.T) {
	querier := &fakeQuerier{events: map[common.Address]*model.EventSet{
		rpcPoolA: {
			Swaps: []model.Swap{{EventMeta: meta(rpcPoolA, 20, 1, 3)}, {EventMeta: meta(rpcPoolA, 10, 0, 0)}},
			Mints: []model.Mint{{EventMeta: meta(rpcPoolA, 10, 0, 1)}},
		},
		rpcPoolB: {
			Burns: []model.Burn{{EventMeta: meta(rpcPoolB, 20, 1, 4)}},
		},
	}}
	chain := &fakeChain{}
	src := NewLogSource(LogSourceConfig{Network: "base"}, &fakePools{addrs: []common.Address{rpcPoolA, rpcPoolB}}, querier, chain, nil)
	engine := NewEngine(0, nil)
	engine.Register(src)

	set, err := engine.GetAllEvents(context.Background(), "base", 1, 100, 0)
	require.NoError(t, err)
	assert.Len(t, querier.calls, 6)
	require.Len(t, set.Swaps, 2)
	assert.Equal(t, uint64(10), set.Swaps[0].BlockNumber)
	assert.Equal(t, uint64(1010), set.Swaps[0].BlockTimestamp)
	assert.Equal(t, originA, set.Burns[0].Origin)

	assert.Equal(t, 2, chain.timestampCalls)
	assert.Equal(t, 2, chain.originCalls)
}

func TestLogSourceFetchOnlyRequestedKinds(t *testing.T) {
	querier := &fakeQuerier{events: map[common.Address]*model.EventSet{rpcPoolA: {}}}
	src := NewLogSource(LogSourceConfig{Network: "base"}, &fakePools{addrs: []common.Address{rpcPoolA}}, querier, &fakeChain{}, nil)
	engine := NewEngine(0, nil)
	engine.Register(src)

	_, err := engine.GetBurnEvents(context.Background(), "base", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []model.EventKind{model.KindBurn}, querier.calls)
}

func TestLogSourcePartialOnFailure(t *testing.T) {
	querier := &fakeQuerier{
		events: map[common.Address]*model.EventSet{
			rpcPoolA: {Swaps: []model.Swap{{EventMeta: meta(rpcPoolA, 5, 0, 0)}}},
		},
		failOn: rpcPoolB,
	}
	src := NewLogSource(LogSourceConfig{Network: "base"}, &fakePools{addrs: []common.Address{rpcPoolA, rpcPoolB}}, querier, &fakeChain{}, nil)

	set, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 10, Kinds: model.AllKinds})
	require.Error(t, err)
	assert.Len(t, set.Swaps, 1)
	assert.Equal(t, uint64(1005), set.Swaps[0].BlockTimestamp)
}

func TestLogSourceTimestampFailureDropsIncompleteEvents(t *testing.T) {
	querier := &fakeQuerier{events: map[common.Address]*model.EventSet{
		rpcPoolA: {
			Swaps: []model.Swap{{EventMeta: meta(rpcPoolA, 20, 0, 0)}, {EventMeta: meta(rpcPoolA, 10, 0, 0)}},
			Mints: []model.Mint{{EventMeta: meta(rpcPoolA, 15, 0, 1)}},
			Burns: []model.Burn{{EventMeta: meta(rpcPoolA, 12, 0, 2)}},
		},
	}}
	src := NewLogSource(LogSourceConfig{Network: "base"}, &fakePools{addrs: []common.Address{rpcPoolA}}, querier, &fakeChain{failBlock: 15}, nil)

	set, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 30, Kinds: model.AllKinds})
	require.ErrorContains(t, err, "block 15 timestamp")
	require.Len(t, set.Swaps, 1)
	assert.Equal(t, uint64(10), set.Swaps[0].BlockNumber)
	assert.Equal(t, uint64(1010), set.Swaps[0].BlockTimestamp)
	assert.Equal(t, originA, set.Swaps[0].Origin)
	require.Len(t, set.Burns, 1)
	assert.Equal(t, uint64(1012), set.Burns[0].BlockTimestamp)
	assert.Empty(t, set.Mints)
}

func TestLogSourceMissingReceiptLeavesOriginEmpty(t *testing.T) {
	m := meta(rpcPoolA, 7, 0, 0)
	querier := &fakeQuerier{events: map[common.Address]*model.EventSet{
		rpcPoolA: {Swaps: []model.Swap{{EventMeta: m}}},
	}}
	src := NewLogSource(LogSourceConfig{Network: "base"}, &fakePools{addrs: []common.Address{rpcPoolA}}, querier, &fakeChain{missing: m.TxHash}, nil)

	set, err := src.Fetch(context.Background(), Range{FromBlock: 1, ToBlock: 10, Kinds: model.KindSwap})
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, set.Swaps[0].Origin)
}

func TestLogSourceLatestBlock(t *testing.T) {
	src := NewLogSource(LogSourceConfig{Network: "base"}, &fakePools{}, &fakeQuerier{}, &fakeChain{}, nil)
	block, err := src.LatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Block{Number: 500, Timestamp: 1500}, block)
}
