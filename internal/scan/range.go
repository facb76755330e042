package scan

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// Span returns the number of blocks covered by the range.
func (r BlockRange) Span() uint64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

// SplitRange splits a block range into chunks of at most size blocks.
func SplitRange(from, to, size uint64) ([]BlockRange, error) {
	if size == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0, (to-from)/size+1)
	start := from
	for start <= to {
		end := to
		if to-start+1 > size {
			end = start + size - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}

// RecentWindow returns the last window blocks ending at head, clamped so it
// never starts before floor.
func RecentWindow(head, window, floor uint64) BlockRange {
	from := floor
	if window > 0 && head+1 > window && head+1-window > floor {
		from = head + 1 - window
	}
	if from > head {
		from = head
	}
	return BlockRange{From: from, To: head}
}
