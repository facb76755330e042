package serializer

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits kept in priceNative.
const PriceScale = 30

// five192 is 5^192; x / 2^192 == x * 5^192 / 10^192.
var five192 = new(big.Int).Exp(big.NewInt(5), big.NewInt(192), nil)

// PriceFromSqrt converts a Q64.96 square-root price into the price of token0
// in token1 units: (sqrtPriceX96 / 2^96)^2 * 10^(decimals0 - decimals1).
func PriceFromSqrt(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero
	}
	n := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	n.Mul(n, five192)
	exp := -192 + int32(decimals0) - int32(decimals1)
	return decimal.NewFromBigInt(n, exp).Round(PriceScale)
}

// PriceFromAmounts is |amount1 / amount0| in whole-token units, used when a
// swap carries no square-root price. It is token1 per token0, the same
// direction as PriceFromSqrt, not the inverse amount0/amount1 ratio.
func PriceFromAmounts(amount0, amount1 decimal.Decimal) decimal.Decimal {
	if amount0.IsZero() {
		return decimal.Zero
	}
	return amount1.DivRound(amount0, PriceScale).Abs()
}

// FormatDecimal renders d without exponent, trailing zeros or a trailing
// decimal point.
func FormatDecimal(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.String()
}
