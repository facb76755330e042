package serializer

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"dexAdapter/internal/model"
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

func testPool(d0, d1 uint8) model.Pool {
	return model.Pool{
		Network: "polygon",
		Address: common.HexToAddress("0x55caabb0d2b704fd0ef8192a7e35d8837e678207"),
		Fee:     500,
		Token0: model.PoolToken{
			Address: common.HexToAddress("0x2791bca1f2de4661ed88a30c99a7a9449aa84174"),
			Meta:    &model.Token{Symbol: "USDC", Decimals: d0},
		},
		Token1: model.PoolToken{
			Address: common.HexToAddress("0x7ceb23fd6bc0add59e62ac25578270cff1b9f619"),
			Meta:    &model.Token{Symbol: "WETH", Decimals: d1},
		},
	}
}

func TestRawAmountFormatting(t *testing.T) {
	v, _ := new(big.Int).SetString("12345600000000000000", 10)
	got := FormatDecimal(model.RawAmount(v).Human(18))
	if got != "12.3456" {
		t.Fatalf("expected 12.3456, got %s", got)
	}
}

func TestFormatDecimal(t *testing.T) {
	cases := map[string]string{
		"0.000000000000000001": "0.000000000000000001",
		"1.500":                "1.5",
		"100":                  "100",
		"1e21":                 "1000000000000000000000",
		"-0.0":                 "0",
		"2.0":                  "2",
	}
	for in, want := range cases {
		got := FormatDecimal(decimal.RequireFromString(in))
		if got != want {
			t.Fatalf("format %s: expected %s, got %s", in, want, got)
		}
		if strings.ContainsAny(got, "eE") {
			t.Fatalf("format %s: exponent in %s", in, got)
		}
	}
}

func TestSwapDirection(t *testing.T) {
	swap := model.Swap{
		Amount0:      model.RawAmount(big.NewInt(-5000000)),
		Amount1:      model.RawAmount(new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))),
		SqrtPriceX96: q96,
	}
	ev, err := ToSwapEvent(swap, testPool(6, 18))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if ev.Asset0Out != "5" || ev.Asset1In != "2" {
		t.Fatalf("unexpected amounts: %+v", ev)
	}
	if ev.Asset0In != "" || ev.Asset1Out != "" {
		t.Fatalf("unexpected populated fields: %+v", ev)
	}

	raw, _ := json.Marshal(ev)
	for _, key := range []string{`"asset0In"`, `"asset1Out"`, `"reserves"`, "null"} {
		if strings.Contains(string(raw), key) {
			t.Fatalf("unexpected %s in %s", key, raw)
		}
	}
}

func TestZeroAmountOmitsBoth(t *testing.T) {
	swap := model.Swap{Amount0: model.ScaledAmount(decimal.Zero), Amount1: model.ScaledAmount(decimal.NewFromInt(3))}
	ev, err := ToSwapEvent(swap, testPool(18, 18))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if ev.Asset0In != "" || ev.Asset0Out != "" {
		t.Fatalf("zero amount should be omitted: %+v", ev)
	}
	if ev.PriceNative != "0" {
		t.Fatalf("expected price 0, got %s", ev.PriceNative)
	}
}

func TestPriceFromSqrt(t *testing.T) {
	if got := FormatDecimal(PriceFromSqrt(q96, 18, 18)); got != "1" {
		t.Fatalf("expected 1, got %s", got)
	}
	double := new(big.Int).Mul(q96, big.NewInt(2))
	if got := FormatDecimal(PriceFromSqrt(double, 18, 18)); got != "4" {
		t.Fatalf("expected 4, got %s", got)
	}
	if got := FormatDecimal(PriceFromSqrt(q96, 6, 18)); got != "0.000000000001" {
		t.Fatalf("expected 1e-12, got %s", got)
	}
}

func TestPriceFallsBackToAmountRatio(t *testing.T) {
	swap := model.Swap{
		Amount0: model.ScaledAmount(decimal.RequireFromString("-2")),
		Amount1: model.ScaledAmount(decimal.RequireFromString("5")),
	}
	ev, err := ToSwapEvent(swap, testPool(18, 18))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if ev.PriceNative != "2.5" {
		t.Fatalf("expected 2.5, got %s", ev.PriceNative)
	}
}

func TestScaledAmountsAreNotRescaled(t *testing.T) {
	mint := model.Mint{
		Amount0: model.ScaledAmount(decimal.RequireFromString("1.25")),
		Amount1: model.ScaledAmount(decimal.RequireFromString("0.5")),
	}
	ev, err := ToJoinExitEvent(mint, testPool(6, 18))
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if ev.EventType != EventJoin || ev.Amount0 != "1.25" || ev.Amount1 != "0.5" {
		t.Fatalf("unexpected join: %+v", ev)
	}
}

func TestReservesOnlyWhenPresent(t *testing.T) {
	r0 := model.ScaledAmount(decimal.RequireFromString("100.10"))
	r1 := model.RawAmount(big.NewInt(3000000))
	burn := model.Burn{EventMeta: model.EventMeta{Reserves0: &r0, Reserves1: &r1}}
	ev, err := ToJoinExitEvent(burn, testPool(18, 6))
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if ev.EventType != EventExit || ev.Reserves == nil || ev.Reserves.Asset0 != "100.1" || ev.Reserves.Asset1 != "3" {
		t.Fatalf("unexpected exit: %+v", ev)
	}

	ev, err = ToJoinExitEvent(model.Burn{}, testPool(18, 6))
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	raw, _ := json.Marshal(ev)
	if strings.Contains(string(raw), "reserves") {
		t.Fatalf("reserves key present: %s", raw)
	}
}

func TestToPair(t *testing.T) {
	pool := testPool(6, 18)
	block := uint64(44000000)
	pool.CreatedAtBlock = &block
	pool.TickSpacing = 10

	pair, err := New("").ToPair(pool)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if pair.DexKey != "algebra-polygon" || pair.FeeBps == nil || *pair.FeeBps != 5 {
		t.Fatalf("unexpected pair: %+v", pair)
	}
	if pair.Metadata["tickSpacing"] != "10" || pair.Metadata["token0Decimals"] != "6" {
		t.Fatalf("unexpected metadata: %+v", pair.Metadata)
	}
	if pair.ID != pool.Address.Hex() || pair.ID == strings.ToLower(pair.ID) {
		t.Fatalf("expected checksum id, got %s", pair.ID)
	}

	pool.Fee = 0
	pair, _ = New("quickswap").ToPair(pool)
	raw, _ := json.Marshal(pair)
	if strings.Contains(string(raw), "feeBps") || strings.Contains(string(raw), "createdAtTxnId") {
		t.Fatalf("optional fields should be omitted: %s", raw)
	}
	if pair.DexKey != "quickswap-polygon" {
		t.Fatalf("unexpected dex key %s", pair.DexKey)
	}
}

func TestUnresolvedPoolIsNotFound(t *testing.T) {
	pool := testPool(6, 18)
	pool.Token1.Meta = nil
	if _, err := New("").ToPair(pool); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := ToSwapEvent(model.Swap{}, pool); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestToAsset(t *testing.T) {
	supply := model.RawAmount(new(big.Int).Mul(big.NewInt(21), big.NewInt(1e17)))
	asset := ToAsset(model.Token{
		Network: "base", Address: common.HexToAddress("0x4200000000000000000000000000000000000006"),
		Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18, TotalSupply: &supply,
	})
	if asset.TotalSupply != "2.1" || asset.Metadata["decimals"] != "18" || asset.Metadata["network"] != "base" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
}

func TestEventsMergedInOrder(t *testing.T) {
	pool := testPool(18, 18)
	meta := func(block, tx, log uint64) model.EventMeta {
		return model.EventMeta{Pool: pool.Address, BlockNumber: block, TxIndex: tx, LogIndex: log}
	}
	set := &model.EventSet{
		Swaps: []model.Swap{{EventMeta: meta(5, 1, 2)}, {EventMeta: meta(3, 0, 0)}},
		Mints: []model.Mint{{EventMeta: meta(5, 1, 1)}},
		Burns: []model.Burn{{EventMeta: meta(4, 0, 9)}},
	}
	events, err := Events(set, func(common.Address) (model.Pool, error) { return pool, nil })
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if !model.IsSortedByKey(events) || len(events) != 4 {
		t.Fatalf("events not sorted: %+v", events)
	}
	if _, ok := events[2].(JoinExitEvent); !ok {
		t.Fatalf("expected join at position 2, got %T", events[2])
	}
}
