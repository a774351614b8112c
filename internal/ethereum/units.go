package ethereum

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToNative converts a human amount to the token's smallest unit, truncating
// any precision beyond decimals.
func ToNative(amount float64, decimals int) *big.Int {
	return decimal.NewFromFloat(amount).Shift(int32(decimals)).Truncate(0).BigInt()
}

// FromNative converts a smallest-unit amount back to human units.
func FromNative(v *big.Int, decimals int) float64 {
	f, _ := decimal.NewFromBigInt(v, -int32(decimals)).Float64()
	return f
}

// MinOut applies a slippage tolerance in basis points to an expected output.
func MinOut(expected *big.Int, slippageBps int) *big.Int {
	keep := decimal.NewFromInt(int64(10000 - slippageBps)).Div(decimal.NewFromInt(10000))
	return decimal.NewFromBigInt(expected, 0).Mul(keep).Truncate(0).BigInt()
}
