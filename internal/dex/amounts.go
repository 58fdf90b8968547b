package dex

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const pricePlaces = 18

// ratio returns numerator/denominator with 18 decimal places, or "0" when the
// denominator is zero.
func ratio(numerator, denominator decimal.Decimal) string {
	if denominator.IsZero() {
		return "0"
	}
	return numerator.DivRound(denominator, pricePlaces).StringFixed(pricePlaces)
}

// swapPrice is out/in for an a-to-b swap and in/out otherwise.
func swapPrice(amountIn, amountOut decimal.Decimal, aToB bool) string {
	if aToB {
		return ratio(amountOut, amountIn)
	}
	return ratio(amountIn, amountOut)
}

// feeAmount is amount × numerator / denominator, truncated to an integer.
func (l Layout) feeAmount(amount decimal.Decimal) string {
	scaled := amount.Mul(decimal.NewFromBigInt(bigFromUint64(l.FeeNumerator), 0))
	q, _ := scaled.QuoRem(decimal.NewFromBigInt(bigFromUint64(l.FeeDenominator), 0), 0)
	return q.String()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(bigFromUint64(v), 0)
}

// parseAmount accepts a non-negative base-10 integer string.
func parseAmount(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, malformed("%s is empty", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, malformed("%s %q: %v", field, s, err)
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, malformed("%s %q is not a non-negative integer", field, s)
	}
	return d, nil
}

func bigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}
