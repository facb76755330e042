package serializer

import (
	"github.com/ethereum/go-ethereum/common"

	"dexAdapter/internal/model"
)

// PoolLookup returns a pool with both tokens resolved.
type PoolLookup func(pool common.Address) (model.Pool, error)

// Events serializes every event of set into one list ordered by
// (block, txnIndex, eventIndex). The first lookup failure aborts.
func Events(set *model.EventSet, lookup PoolLookup) ([]Event, error) {
	if set == nil {
		return []Event{}, nil
	}
	out := make([]Event, 0, set.Len())
	for _, s := range set.Swaps {
		pool, err := lookup(s.Pool)
		if err != nil {
			return nil, err
		}
		ev, err := ToSwapEvent(s, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	for _, m := range set.Mints {
		pool, err := lookup(m.Pool)
		if err != nil {
			return nil, err
		}
		ev, err := ToJoinExitEvent(m, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	for _, b := range set.Burns {
		pool, err := lookup(b.Pool)
		if err != nil {
			return nil, err
		}
		ev, err := ToJoinExitEvent(b, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	model.SortByKey(out)
	return out, nil
}
