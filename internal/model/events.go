package model

import (
	"cmp"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies a pool event type.
type EventKind uint8

const (
	KindSwap EventKind = 1 << iota
	KindMint
	KindBurn

	AllKinds = KindSwap | KindMint | KindBurn
)

func (k EventKind) String() string {
	switch k {
	case KindSwap:
		return "swap"
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	default:
		return "mixed"
	}
}

// Has reports whether every kind in other is set in k.
func (k EventKind) Has(other EventKind) bool {
	return k&other == other
}

// OrderKey is the composite sort key of a pool event.
type OrderKey struct {
	BlockNumber uint64
	TxIndex     uint64
	LogIndex    uint64
}

// Compare orders keys by block, then transaction index, then log index.
func (k OrderKey) Compare(o OrderKey) int {
	if c := cmp.Compare(k.BlockNumber, o.BlockNumber); c != 0 {
		return c
	}
	if c := cmp.Compare(k.TxIndex, o.TxIndex); c != 0 {
		return c
	}
	return cmp.Compare(k.LogIndex, o.LogIndex)
}

// EventMeta holds the fields shared by every pool event.
type EventMeta struct {
	Network        string
	TxHash         common.Hash
	TxIndex        uint64
	LogIndex       uint64
	BlockNumber    uint64
	BlockTimestamp uint64
	Pool           common.Address
	Origin         common.Address
	Reserves0      *Amount
	Reserves1      *Amount
}

func (m EventMeta) Key() OrderKey {
	return OrderKey{BlockNumber: m.BlockNumber, TxIndex: m.TxIndex, LogIndex: m.LogIndex}
}

// HasReserves reports whether both reserve values are present.
func (m EventMeta) HasReserves() bool {
	return m.Reserves0 != nil && m.Reserves1 != nil
}

// Swap is a normalized pool Swap event. Amounts are signed from the pool's
// perspective: positive means the token flowed into the pool.
type Swap struct {
	EventMeta
	Sender       common.Address
	Recipient    common.Address
	Amount0      Amount
	Amount1      Amount
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// Mint is a normalized liquidity addition.
type Mint struct {
	EventMeta
	Owner     common.Address
	Sender    common.Address
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	Amount0   Amount
	Amount1   Amount
}

// Burn is a normalized liquidity removal.
type Burn struct {
	EventMeta
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	Amount0   Amount
	Amount1   Amount
}

// EventSet is the result of a range fetch. It may be partial when returned
// together with an error.
type EventSet struct {
	Swaps   []Swap
	Mints   []Mint
	Burns   []Burn
	Skipped int
}

// Len returns the number of events in the set.
func (s *EventSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Swaps) + len(s.Mints) + len(s.Burns)
}

// Append moves the events of other into s.
func (s *EventSet) Append(other *EventSet) {
	if other == nil {
		return
	}
	s.Swaps = append(s.Swaps, other.Swaps...)
	s.Mints = append(s.Mints, other.Mints...)
	s.Burns = append(s.Burns, other.Burns...)
	s.Skipped += other.Skipped
}

// Keep drops the lists of kinds not in kinds.
func (s *EventSet) Keep(kinds EventKind) {
	if !kinds.Has(KindSwap) {
		s.Swaps = nil
	}
	if !kinds.Has(KindMint) {
		s.Mints = nil
	}
	if !kinds.Has(KindBurn) {
		s.Burns = nil
	}
}

// Truncate drops every event at or after k.
func (s *EventSet) Truncate(k OrderKey) {
	s.Swaps = dropFrom(s.Swaps, k)
	s.Mints = dropFrom(s.Mints, k)
	s.Burns = dropFrom(s.Burns, k)
}

func dropFrom[T Keyed](items []T, k OrderKey) []T {
	return slices.DeleteFunc(items, func(e T) bool {
		return e.Key().Compare(k) >= 0
	})
}

// Sort orders each list by (blockNumber, txIndex, logIndex). The sort is
// stable so equal keys keep upstream order.
func (s *EventSet) Sort() {
	SortByKey(s.Swaps)
	SortByKey(s.Mints)
	SortByKey(s.Burns)
}

// Keyed is implemented by every pool event.
type Keyed interface {
	Key() OrderKey
}

// SortByKey stably sorts events by their OrderKey.
func SortByKey[T Keyed](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		return a.Key().Compare(b.Key())
	})
}

// IsSortedByKey reports whether items are in OrderKey order.
func IsSortedByKey[T Keyed](items []T) bool {
	return slices.IsSortedFunc(items, func(a, b T) int {
		return a.Key().Compare(b.Key())
	})
}
