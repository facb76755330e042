package model

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
)

func TestEventSetSortOrder(t *testing.T) {
	set := &EventSet{
		Swaps: []Swap{
			{EventMeta: EventMeta{BlockNumber: 12, TxIndex: 0, LogIndex: 4}},
			{EventMeta: EventMeta{BlockNumber: 10, TxIndex: 3, LogIndex: 1}},
			{EventMeta: EventMeta{BlockNumber: 10, TxIndex: 1, LogIndex: 9}},
			{EventMeta: EventMeta{BlockNumber: 10, TxIndex: 1, LogIndex: 2}},
		},
	}

	set.Sort()

	got := make([]OrderKey, 0, len(set.Swaps))
	for _, s := range set.Swaps {
		got = append(got, s.Key())
	}
	want := []OrderKey{
		{BlockNumber: 10, TxIndex: 1, LogIndex: 2},
		{BlockNumber: 10, TxIndex: 1, LogIndex: 9},
		{BlockNumber: 10, TxIndex: 3, LogIndex: 1},
		{BlockNumber: 12, TxIndex: 0, LogIndex: 4},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order mismatch: %+v", got)
	}

	before := append([]Swap(nil), set.Swaps...)
	set.Sort()
	if !reflect.DeepEqual(before, set.Swaps) {
		t.Fatalf("second sort changed order")
	}
	if !IsSortedByKey(set.Swaps) {
		t.Fatalf("expected sorted swaps")
	}
}

func TestEventSetTruncate(t *testing.T) {
	set := &EventSet{
		Swaps: []Swap{
			{EventMeta: EventMeta{BlockNumber: 10, TxIndex: 1, LogIndex: 2}},
			{EventMeta: EventMeta{BlockNumber: 11, TxIndex: 0, LogIndex: 0}},
		},
		Mints: []Mint{{EventMeta: EventMeta{BlockNumber: 10, TxIndex: 1, LogIndex: 3}}},
		Burns: []Burn{{EventMeta: EventMeta{BlockNumber: 10, TxIndex: 0, LogIndex: 7}}},
	}

	set.Truncate(OrderKey{BlockNumber: 10, TxIndex: 1, LogIndex: 3})

	if len(set.Swaps) != 1 || set.Swaps[0].BlockNumber != 10 {
		t.Fatalf("swaps = %+v", set.Swaps)
	}
	if len(set.Mints) != 0 {
		t.Fatalf("mint at the cut should be dropped: %+v", set.Mints)
	}
	if len(set.Burns) != 1 {
		t.Fatalf("burns = %+v", set.Burns)
	}
}

func TestAmountHumanScalesOnce(t *testing.T) {
	raw := RawAmount(new(big.Int).SetUint64(12345600000000000000))
	if got := raw.Human(18).String(); got != "12.3456" {
		t.Fatalf("raw human mismatch: %s", got)
	}

	scaled := ScaledAmount(decimal.RequireFromString("12.3456"))
	if got := scaled.Human(18).String(); got != "12.3456" {
		t.Fatalf("scaled amount was rescaled: %s", got)
	}
}

func TestParseScaledAmountRejectsGarbage(t *testing.T) {
	if _, err := ParseScaledAmount("12.x"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := ParseScaledAmount(""); err == nil {
		t.Fatalf("expected error for empty amount")
	}
	a, err := ParseScaledAmount("-0.5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Sign() >= 0 || !a.Scaled {
		t.Fatalf("unexpected amount %+v", a)
	}
}

func TestPoolMergeKeepsKnownFields(t *testing.T) {
	block := uint64(100)
	base := Pool{Fee: 500, TickSpacing: 10, CreatedAtBlock: &block}
	merged := base.Merge(Pool{TickSpacing: 60})
	if merged.Fee != 500 || merged.CreatedAtBlock == nil || *merged.CreatedAtBlock != 100 {
		t.Fatalf("merge dropped fields: %+v", merged)
	}
	if merged.TickSpacing != 60 {
		t.Fatalf("merge did not apply fresher tick spacing")
	}
}
