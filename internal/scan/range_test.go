package scan

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
}

func TestRecentWindow(t *testing.T) {
	cases := []struct {
		head, window, floor uint64
		want                BlockRange
	}{
		{head: 50000, window: 10000, floor: 0, want: BlockRange{From: 40001, To: 50000}},
		{head: 500, window: 10000, floor: 0, want: BlockRange{From: 0, To: 500}},
		{head: 50000, window: 10000, floor: 45000, want: BlockRange{From: 45000, To: 50000}},
		{head: 10, window: 0, floor: 3, want: BlockRange{From: 3, To: 10}},
	}
	for _, tc := range cases {
		got := RecentWindow(tc.head, tc.window, tc.floor)
		if got != tc.want {
			t.Fatalf("window(%d,%d,%d) = %+v, want %+v", tc.head, tc.window, tc.floor, got, tc.want)
		}
		if got.Span() == 0 {
			t.Fatalf("empty window for %+v", tc)
		}
	}
}
