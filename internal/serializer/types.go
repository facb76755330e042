package serializer

import "dexAdapter/internal/model"

// Block is the external block record.
type Block struct {
	BlockNumber    uint64 `json:"blockNumber"`
	BlockTimestamp uint64 `json:"blockTimestamp"`
}

// Asset is the external token record.
type Asset struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Symbol      string            `json:"symbol"`
	TotalSupply string            `json:"totalSupply,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Pair is the external pool record.
type Pair struct {
	ID                      string            `json:"id"`
	DexKey                  string            `json:"dexKey"`
	Asset0ID                string            `json:"asset0Id"`
	Asset1ID                string            `json:"asset1Id"`
	CreatedAtBlockNumber    *uint64           `json:"createdAtBlockNumber,omitempty"`
	CreatedAtBlockTimestamp *uint64           `json:"createdAtBlockTimestamp,omitempty"`
	CreatedAtTxnID          string            `json:"createdAtTxnId,omitempty"`
	Creator                 string            `json:"creator,omitempty"`
	FeeBps                  *uint32           `json:"feeBps,omitempty"`
	Metadata                map[string]string `json:"metadata,omitempty"`
}

// Reserves are pool balances after the event, in whole-token units.
type Reserves struct {
	Asset0 string `json:"asset0"`
	Asset1 string `json:"asset1"`
}

// Event is either a SwapEvent or a JoinExitEvent.
type Event interface {
	Key() model.OrderKey
	isEvent()
}

// SwapEvent is the external swap record.
type SwapEvent struct {
	Block       Block             `json:"block"`
	EventType   string            `json:"eventType"`
	TxnID       string            `json:"txnId"`
	TxnIndex    uint64            `json:"txnIndex"`
	EventIndex  uint64            `json:"eventIndex"`
	Maker       string            `json:"maker"`
	PairID      string            `json:"pairId"`
	Asset0In    string            `json:"asset0In,omitempty"`
	Asset1In    string            `json:"asset1In,omitempty"`
	Asset0Out   string            `json:"asset0Out,omitempty"`
	Asset1Out   string            `json:"asset1Out,omitempty"`
	PriceNative string            `json:"priceNative"`
	Reserves    *Reserves         `json:"reserves,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// JoinExitEvent is the external liquidity record; EventType is "join" or
// "exit".
type JoinExitEvent struct {
	Block      Block             `json:"block"`
	EventType  string            `json:"eventType"`
	TxnID      string            `json:"txnId"`
	TxnIndex   uint64            `json:"txnIndex"`
	EventIndex uint64            `json:"eventIndex"`
	Maker      string            `json:"maker"`
	PairID     string            `json:"pairId"`
	Amount0    string            `json:"amount0"`
	Amount1    string            `json:"amount1"`
	Reserves   *Reserves         `json:"reserves,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

const (
	EventSwap = "swap"
	EventJoin = "join"
	EventExit = "exit"
)

func (e SwapEvent) Key() model.OrderKey {
	return model.OrderKey{BlockNumber: e.Block.BlockNumber, TxIndex: e.TxnIndex, LogIndex: e.EventIndex}
}

func (e JoinExitEvent) Key() model.OrderKey {
	return model.OrderKey{BlockNumber: e.Block.BlockNumber, TxIndex: e.TxnIndex, LogIndex: e.EventIndex}
}

func (SwapEvent) isEvent()     {}
func (JoinExitEvent) isEvent() {}
