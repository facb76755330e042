package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dexAdapter/internal/model"
)

// FactoryKind selects the pool-creation event layout of a factory.
type FactoryKind string

const (
	// FactoryAlgebra emits Pool(address indexed token0, address indexed token1, address pool).
	FactoryAlgebra FactoryKind = "algebra"
	// FactoryUniswapV3 emits PoolCreated(token0, token1, fee indexed, int24 tickSpacing, address pool).
	FactoryUniswapV3 FactoryKind = "uniswap-v3"
)

// ParseFactoryKind accepts the configured kind name; empty means algebra.
func ParseFactoryKind(s string) (FactoryKind, error) {
	switch FactoryKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", FactoryAlgebra:
		return FactoryAlgebra, nil
	case FactoryUniswapV3, "uniswapv3", "v3":
		return FactoryUniswapV3, nil
	default:
		return "", fmt.Errorf("unknown factory kind %q", s)
	}
}

func (k FactoryKind) eventName() string {
	if k == FactoryUniswapV3 {
		return "PoolCreated"
	}
	return "Pool"
}

// FactoryDecoder decodes pool-creation logs for one factory kind.
type FactoryDecoder struct {
	kind  FactoryKind
	event abi.Event
}

// NewFactoryDecoder builds a decoder for kind.
func NewFactoryDecoder(kind FactoryKind) (*FactoryDecoder, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	event, ok := parsed.Events[kind.eventName()]
	if !ok {
		return nil, fmt.Errorf("factory kind %s has no creation event", kind)
	}
	return &FactoryDecoder{kind: kind, event: event}, nil
}

// Topic returns the creation event topic0.
func (d *FactoryDecoder) Topic() common.Hash {
	return d.event.ID
}

// Decode extracts the created pool from a factory log. Token addresses come
// from the indexed topics; the pool address is unpacked from the data
// segment with the kind's ABI instead of read at a fixed offset.
func (d *FactoryDecoder) Decode(network string, log types.Log) (model.Pool, error) {
	if len(log.Topics) == 0 || log.Topics[0] != d.event.ID {
		return model.Pool{}, fmt.Errorf("not a %s log", d.event.Name)
	}
	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return model.Pool{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
		Fee    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return model.Pool{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return model.Pool{}, err
	}

	pool := model.Pool{
		Network:     network,
		Token0:      model.PoolToken{Address: indexed.Token0},
		Token1:      model.PoolToken{Address: indexed.Token1},
		TickSpacing: model.DefaultTickSpacing,
	}

	switch d.kind {
	case FactoryUniswapV3:
		if len(values) != 2 {
			return model.Pool{}, fmt.Errorf("unexpected %s values: %d", d.event.Name, len(values))
		}
		spacing, err := asBigInt(values[0])
		if err != nil {
			return model.Pool{}, err
		}
		tickSpacing, err := int24FromBig(spacing)
		if err != nil {
			return model.Pool{}, err
		}
		pool.TickSpacing = tickSpacing
		if pool.Address, err = asAddress(values[1]); err != nil {
			return model.Pool{}, err
		}
		if indexed.Fee != nil {
			pool.Fee = uint32(indexed.Fee.Uint64())
		}
	default:
		if len(values) != 1 {
			return model.Pool{}, fmt.Errorf("unexpected %s values: %d", d.event.Name, len(values))
		}
		if pool.Address, err = asAddress(values[0]); err != nil {
			return model.Pool{}, err
		}
	}

	if pool.Address == (common.Address{}) {
		return model.Pool{}, fmt.Errorf("zero pool address")
	}

	block := log.BlockNumber
	tx := log.TxHash
	pool.CreatedAtBlock = &block
	pool.CreatedAtTx = &tx
	return pool, nil
}
