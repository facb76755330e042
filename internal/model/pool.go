package model

import "github.com/ethereum/go-ethereum/common"

// DefaultTickSpacing is used for pools discovered from factory logs until an
// explicit lookup fills in the real value.
const DefaultTickSpacing int32 = 60

// PoolToken references one side of a pool. Meta is nil until the token is
// resolved.
type PoolToken struct {
	Address common.Address
	Meta    *Token
}

// Resolved reports whether the token descriptor is present.
func (t PoolToken) Resolved() bool {
	return t.Meta != nil
}

// Pool is a concentrated-liquidity pool descriptor scoped to a network.
type Pool struct {
	Network            string
	Address            common.Address
	Token0             PoolToken
	Token1             PoolToken
	Fee                uint32
	TickSpacing        int32
	CreatedAtBlock     *uint64
	CreatedAtTimestamp *uint64
	CreatedAtTx        *common.Hash
	Creator            *common.Address
	SchemaVersion      *SchemaVersion

	// Refined is set once the pool has been read from its authoritative
	// source rather than inferred from a creation log or an event.
	Refined bool
}

// Merge returns p updated with every field that fresher carries. Fields the
// fresher record leaves empty keep their current value.
func (p Pool) Merge(fresher Pool) Pool {
	out := p
	if fresher.Token0.Address != (common.Address{}) {
		out.Token0.Address = fresher.Token0.Address
	}
	if fresher.Token0.Meta != nil {
		out.Token0.Meta = fresher.Token0.Meta
	}
	if fresher.Token1.Address != (common.Address{}) {
		out.Token1.Address = fresher.Token1.Address
	}
	if fresher.Token1.Meta != nil {
		out.Token1.Meta = fresher.Token1.Meta
	}
	if fresher.Fee != 0 {
		out.Fee = fresher.Fee
	}
	if fresher.TickSpacing != 0 {
		out.TickSpacing = fresher.TickSpacing
	}
	if fresher.CreatedAtBlock != nil {
		out.CreatedAtBlock = fresher.CreatedAtBlock
	}
	if fresher.CreatedAtTimestamp != nil {
		out.CreatedAtTimestamp = fresher.CreatedAtTimestamp
	}
	if fresher.CreatedAtTx != nil {
		out.CreatedAtTx = fresher.CreatedAtTx
	}
	if fresher.Creator != nil {
		out.Creator = fresher.Creator
	}
	if fresher.SchemaVersion != nil {
		out.SchemaVersion = fresher.SchemaVersion
	}
	out.Refined = p.Refined || fresher.Refined
	return out
}

// TokensResolved reports whether both token descriptors are present.
func (p Pool) TokensResolved() bool {
	return p.Token0.Resolved() && p.Token1.Resolved()
}
