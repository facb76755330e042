package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexAdapter/internal/model"
)

// Caller performs read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetadataFetcher reads pool and token descriptors straight from contracts.
type MetadataFetcher struct {
	network string
	caller  Caller
	logger  *zap.Logger
}

func NewMetadataFetcher(network string, caller Caller, logger *zap.Logger) *MetadataFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetadataFetcher{network: network, caller: caller, logger: logger}
}

// Pool loads token0/token1/fee/tickSpacing for a pool. Token descriptors
// are not resolved here. Algebra pools expose the fee through globalState;
// Uniswap V3 pools through fee().
func (f *MetadataFetcher) Pool(ctx context.Context, pool common.Address) (model.Pool, error) {
	if f.caller == nil {
		return model.Pool{}, fmt.Errorf("chain client is nil")
	}

	parsed, err := PoolABI()
	if err != nil {
		return model.Pool{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, f.caller, pool, parsed, "token0", nil)
	if err != nil {
		return model.Pool{}, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token0: %w", err)
	}

	values, err = callMethod(ctx, f.caller, pool, parsed, "token1", nil)
	if err != nil {
		return model.Pool{}, err
	}
	token1, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("token1: %w", err)
	}

	out := model.Pool{
		Network:     f.network,
		Address:     pool,
		Token0:      model.PoolToken{Address: token0},
		Token1:      model.PoolToken{Address: token1},
		TickSpacing: model.DefaultTickSpacing,
		Refined:     true,
	}

	if fee, err := f.fetchFee(ctx, pool, parsed); err == nil {
		out.Fee = fee
	} else {
		f.logger.Debug("pool fee unavailable", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, f.caller, pool, parsed, "tickSpacing", nil); err == nil {
		if spacing, err := asBigInt(values[0]); err == nil {
			if tickSpacing, err := int24FromBig(spacing); err == nil {
				out.TickSpacing = tickSpacing
			}
		}
	} else {
		f.logger.Debug("tick spacing unavailable", zap.String("pool", pool.Hex()), zap.Error(err))
	}

	return out, nil
}

func (f *MetadataFetcher) fetchFee(ctx context.Context, pool common.Address, parsed abi.ABI) (uint32, error) {
	values, err := callMethod(ctx, f.caller, pool, parsed, "fee", nil)
	if err != nil {
		values, err = callMethod(ctx, f.caller, pool, parsed, "globalState", nil)
		if err != nil {
			return 0, err
		}
		if len(values) < 3 {
			return 0, fmt.Errorf("globalState returned %d values", len(values))
		}
		values = values[2:]
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return 0, fmt.Errorf("fee: %w", err)
	}
	return uint32(fee.Uint64()), nil
}

// Token loads token metadata via ERC20 calls. Decimals are required;
// name, symbol and total supply are best effort.
func (f *MetadataFetcher) Token(ctx context.Context, token common.Address) (model.Token, error) {
	meta := model.Token{Network: f.network, Address: token}
	if f.caller == nil {
		return meta, fmt.Errorf("chain client is nil")
	}

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, f.caller, token, stringABI, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	meta.Symbol = f.textField(ctx, token, "symbol", stringABI, bytes32ABI)
	meta.Name = f.textField(ctx, token, "name", stringABI, bytes32ABI)

	if values, err := callMethod(ctx, f.caller, token, stringABI, "totalSupply", nil); err == nil {
		if supply, err := asBigInt(values[0]); err == nil {
			amount := model.RawAmount(supply)
			meta.TotalSupply = &amount
		}
	} else {
		f.logger.Debug("totalSupply call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func (f *MetadataFetcher) textField(ctx context.Context, token common.Address, method string, stringABI, bytes32ABI abi.ABI) string {
	if values, err := callMethod(ctx, f.caller, token, stringABI, method, nil); err == nil {
		if s, ok := values[0].(string); ok {
			return s
		}
	}
	values, err := callMethod(ctx, f.caller, token, bytes32ABI, method, nil)
	if err != nil {
		f.logger.Debug(method+" call failed", zap.String("token", token.Hex()), zap.Error(err))
		return ""
	}
	s, _ := bytes32ToString(values[0])
	return s
}

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("call %s on %s: empty result: %w", method, to.Hex(), model.ErrNotFound)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no values", method)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
