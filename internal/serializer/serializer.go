package serializer

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"dexAdapter/internal/model"
)

// DefaultDexKey prefixes every pair's dexKey.
const DefaultDexKey = "algebra"

// Serializer maps internal records onto the external contract.
type Serializer struct {
	dexKey string
}

func New(dexKey string) *Serializer {
	if dexKey == "" {
		dexKey = DefaultDexKey
	}
	return &Serializer{dexKey: dexKey}
}

// DexKey is "<dex-key>-<network>".
func (s *Serializer) DexKey(network string) string {
	return s.dexKey + "-" + network
}

func ToBlock(b model.Block) Block {
	return Block{BlockNumber: b.Number, BlockTimestamp: b.Timestamp}
}

func ToAsset(t model.Token) Asset {
	asset := Asset{
		ID:     t.Address.Hex(),
		Name:   t.Name,
		Symbol: t.Symbol,
		Metadata: map[string]string{
			"network":  t.Network,
			"decimals": strconv.Itoa(int(t.Decimals)),
		},
	}
	if t.TotalSupply != nil && !t.TotalSupply.IsZero() {
		asset.TotalSupply = FormatDecimal(t.TotalSupply.Human(t.Decimals))
	}
	return asset
}

func (s *Serializer) ToPair(p model.Pool) (Pair, error) {
	if !p.TokensResolved() {
		return Pair{}, unresolved(p)
	}
	spacing := p.TickSpacing
	if spacing == 0 {
		spacing = model.DefaultTickSpacing
	}

	pair := Pair{
		ID:                      p.Address.Hex(),
		DexKey:                  s.DexKey(p.Network),
		Asset0ID:                p.Token0.Address.Hex(),
		Asset1ID:                p.Token1.Address.Hex(),
		CreatedAtBlockNumber:    p.CreatedAtBlock,
		CreatedAtBlockTimestamp: p.CreatedAtTimestamp,
		Metadata: map[string]string{
			"network":        p.Network,
			"tickSpacing":    strconv.Itoa(int(spacing)),
			"token0Symbol":   p.Token0.Meta.Symbol,
			"token1Symbol":   p.Token1.Meta.Symbol,
			"token0Decimals": strconv.Itoa(int(p.Token0.Meta.Decimals)),
			"token1Decimals": strconv.Itoa(int(p.Token1.Meta.Decimals)),
		},
	}
	if p.CreatedAtTx != nil {
		pair.CreatedAtTxnID = p.CreatedAtTx.Hex()
	}
	if p.Creator != nil {
		pair.Creator = p.Creator.Hex()
	}
	if p.Fee != 0 {
		bps := p.Fee / 100
		pair.FeeBps = &bps
	}
	return pair, nil
}

// ToSwapEvent needs the pool with both tokens resolved to scale raw amounts.
func ToSwapEvent(swap model.Swap, pool model.Pool) (SwapEvent, error) {
	if !pool.TokensResolved() {
		return SwapEvent{}, unresolved(pool)
	}
	d0, d1 := pool.Token0.Meta.Decimals, pool.Token1.Meta.Decimals
	amount0 := swap.Amount0.Human(d0)
	amount1 := swap.Amount1.Human(d1)

	ev := SwapEvent{
		Block:      Block{BlockNumber: swap.BlockNumber, BlockTimestamp: swap.BlockTimestamp},
		EventType:  EventSwap,
		TxnID:      swap.TxHash.Hex(),
		TxnIndex:   swap.TxIndex,
		EventIndex: swap.LogIndex,
		Maker:      swap.Origin.Hex(),
		PairID:     swap.Pool.Hex(),
		Reserves:   reserves(swap.EventMeta, d0, d1),
		Metadata:   map[string]string{"network": swap.Network},
	}
	ev.Asset0In, ev.Asset0Out = direction(amount0)
	ev.Asset1In, ev.Asset1Out = direction(amount1)

	if swap.SqrtPriceX96 != nil && swap.SqrtPriceX96.Sign() > 0 {
		ev.PriceNative = FormatDecimal(PriceFromSqrt(swap.SqrtPriceX96, d0, d1))
	} else {
		ev.PriceNative = FormatDecimal(PriceFromAmounts(amount0, amount1))
	}
	return ev, nil
}

// ToJoinExitEvent maps a Mint (join) or Burn (exit).
func ToJoinExitEvent[E model.Mint | model.Burn](event E, pool model.Pool) (JoinExitEvent, error) {
	if !pool.TokensResolved() {
		return JoinExitEvent{}, unresolved(pool)
	}
	var (
		meta             model.EventMeta
		amount0, amount1 model.Amount
		eventType        string
	)
	switch e := any(event).(type) {
	case model.Mint:
		meta, amount0, amount1, eventType = e.EventMeta, e.Amount0, e.Amount1, EventJoin
	case model.Burn:
		meta, amount0, amount1, eventType = e.EventMeta, e.Amount0, e.Amount1, EventExit
	}
	d0, d1 := pool.Token0.Meta.Decimals, pool.Token1.Meta.Decimals

	return JoinExitEvent{
		Block:      Block{BlockNumber: meta.BlockNumber, BlockTimestamp: meta.BlockTimestamp},
		EventType:  eventType,
		TxnID:      meta.TxHash.Hex(),
		TxnIndex:   meta.TxIndex,
		EventIndex: meta.LogIndex,
		Maker:      meta.Origin.Hex(),
		PairID:     meta.Pool.Hex(),
		Amount0:    FormatDecimal(amount0.Human(d0)),
		Amount1:    FormatDecimal(amount1.Human(d1)),
		Reserves:   reserves(meta, d0, d1),
		Metadata:   map[string]string{"network": meta.Network},
	}, nil
}

func direction(amount decimal.Decimal) (in, out string) {
	switch amount.Sign() {
	case 1:
		return FormatDecimal(amount), ""
	case -1:
		return "", FormatDecimal(amount.Abs())
	default:
		return "", ""
	}
}

func reserves(m model.EventMeta, d0, d1 uint8) *Reserves {
	if !m.HasReserves() {
		return nil
	}
	return &Reserves{
		Asset0: FormatDecimal(m.Reserves0.Human(d0)),
		Asset1: FormatDecimal(m.Reserves1.Human(d1)),
	}
}

func unresolved(p model.Pool) error {
	return fmt.Errorf("pool %s on %s: tokens not resolved: %w", p.Address.Hex(), p.Network, model.ErrNotFound)
}
