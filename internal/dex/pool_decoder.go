package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexAdapter/internal/model"
)

// PoolDecoder turns raw pool logs into normalized events. Block timestamp and
// transaction origin are not part of a log and are left for the caller.
type PoolDecoder struct {
	poolABI abi.ABI
	topics  map[model.EventKind]common.Hash
	kinds   map[common.Hash]model.EventKind
}

// NewPoolDecoder builds a pool decoder.
func NewPoolDecoder() (*PoolDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	topics := map[model.EventKind]common.Hash{
		model.KindSwap: parsed.Events["Swap"].ID,
		model.KindMint: parsed.Events["Mint"].ID,
		model.KindBurn: parsed.Events["Burn"].ID,
	}
	kinds := make(map[common.Hash]model.EventKind, len(topics))
	for kind, topic := range topics {
		kinds[topic] = kind
	}

	return &PoolDecoder{poolABI: parsed, topics: topics, kinds: kinds}, nil
}

// Topic returns the topic0 of an event kind.
func (d *PoolDecoder) Topic(kind model.EventKind) (common.Hash, bool) {
	topic, ok := d.topics[kind]
	return topic, ok
}

// Kind returns the event kind of a topic0.
func (d *PoolDecoder) Kind(topic0 common.Hash) (model.EventKind, bool) {
	kind, ok := d.kinds[topic0]
	return kind, ok
}

// DecodeSwap decodes a Swap log.
func (d *PoolDecoder) DecodeSwap(network string, log types.Log) (model.Swap, error) {
	event := d.poolABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.Swap{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.Swap{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.Swap{}, err
	}
	if len(values) != 5 {
		return model.Swap{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.Swap{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.Swap{}, err
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return model.Swap{}, err
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return model.Swap{}, err
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return model.Swap{}, err
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return model.Swap{}, err
	}

	return model.Swap{
		EventMeta:    eventMeta(network, log),
		Sender:       indexed.Sender,
		Recipient:    indexed.Recipient,
		Amount0:      model.RawAmount(amount0),
		Amount1:      model.RawAmount(amount1),
		SqrtPriceX96: sqrtPrice,
		Liquidity:    liquidity,
		Tick:         tick,
	}, nil
}

// DecodeMint decodes a Mint log.
func (d *PoolDecoder) DecodeMint(network string, log types.Log) (model.Mint, error) {
	event := d.poolABI.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.Mint{}, err
	}

	var indexed struct {
		Owner      common.Address
		BottomTick *big.Int
		TopTick    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.Mint{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.Mint{}, err
	}
	if len(values) != 4 {
		return model.Mint{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return model.Mint{}, err
	}
	liquidity, err := asBigInt(values[1])
	if err != nil {
		return model.Mint{}, err
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return model.Mint{}, err
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return model.Mint{}, err
	}

	tickLower, err := int24FromBig(indexed.BottomTick)
	if err != nil {
		return model.Mint{}, err
	}
	tickUpper, err := int24FromBig(indexed.TopTick)
	if err != nil {
		return model.Mint{}, err
	}

	return model.Mint{
		EventMeta: eventMeta(network, log),
		Owner:     indexed.Owner,
		Sender:    sender,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity,
		Amount0:   model.RawAmount(amount0),
		Amount1:   model.RawAmount(amount1),
	}, nil
}

// DecodeBurn decodes a Burn log.
func (d *PoolDecoder) DecodeBurn(network string, log types.Log) (model.Burn, error) {
	event := d.poolABI.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.Burn{}, err
	}

	var indexed struct {
		Owner      common.Address
		BottomTick *big.Int
		TopTick    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.Burn{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.Burn{}, err
	}
	if len(values) != 3 {
		return model.Burn{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.Burn{}, err
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return model.Burn{}, err
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return model.Burn{}, err
	}

	tickLower, err := int24FromBig(indexed.BottomTick)
	if err != nil {
		return model.Burn{}, err
	}
	tickUpper, err := int24FromBig(indexed.TopTick)
	if err != nil {
		return model.Burn{}, err
	}

	return model.Burn{
		EventMeta: eventMeta(network, log),
		Owner:     indexed.Owner,
		TickLower: tickLower,
		TickUpper: tickUpper,
		Liquidity: liquidity,
		Amount0:   model.RawAmount(amount0),
		Amount1:   model.RawAmount(amount1),
	}, nil
}

// Decode dispatches on topic0 and appends the decoded event to set.
func (d *PoolDecoder) Decode(network string, log types.Log, set *model.EventSet) error {
	if len(log.Topics) == 0 {
		return fmt.Errorf("missing topics")
	}
	kind, ok := d.kinds[log.Topics[0]]
	if !ok {
		return fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	switch kind {
	case model.KindSwap:
		swap, err := d.DecodeSwap(network, log)
		if err != nil {
			return err
		}
		set.Swaps = append(set.Swaps, swap)
	case model.KindMint:
		mint, err := d.DecodeMint(network, log)
		if err != nil {
			return err
		}
		set.Mints = append(set.Mints, mint)
	case model.KindBurn:
		burn, err := d.DecodeBurn(network, log)
		if err != nil {
			return err
		}
		set.Burns = append(set.Burns, burn)
	}
	return nil
}

func eventMeta(network string, log types.Log) model.EventMeta {
	return model.EventMeta{
		Network:     network,
		TxHash:      log.TxHash,
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
		BlockNumber: log.BlockNumber,
		Pool:        log.Address,
	}
}

func parseIndexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, data []byte) ([]interface{}, error) {
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
