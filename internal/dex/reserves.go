package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dexAdapter/internal/model"
)

// PoolReserves returns the pool's token balances at blockNumber as raw
// amounts. When the node cannot serve historical state it falls back to the
// latest balances, matching what a non-archive endpoint can answer.
func PoolReserves(ctx context.Context, caller Caller, pool, token0, token1 common.Address, blockNumber uint64) (model.Amount, model.Amount, error) {
	blockPtr := new(big.Int).SetUint64(blockNumber)

	bal0, err0 := balanceOf(ctx, caller, token0, pool, blockPtr)
	bal1, err1 := balanceOf(ctx, caller, token1, pool, blockPtr)
	if err0 == nil && err1 == nil {
		return model.RawAmount(bal0), model.RawAmount(bal1), nil
	}

	bal0, err0 = balanceOf(ctx, caller, token0, pool, nil)
	bal1, err1 = balanceOf(ctx, caller, token1, pool, nil)
	if err0 != nil {
		return model.Amount{}, model.Amount{}, err0
	}
	if err1 != nil {
		return model.Amount{}, model.Amount{}, err1
	}
	return model.RawAmount(bal0), model.RawAmount(bal1), nil
}

func balanceOf(ctx context.Context, caller Caller, token common.Address, owner common.Address, blockNumber *big.Int) (*big.Int, error) {
	if caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	parsed, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}

	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", blockNumber, owner)
	if err != nil {
		return nil, err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf unexpected type %T", values[0])
	}
	return bal, nil
}
