package oracle

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// PriceBits is the number of fractional bits in a fixed-point price.
const PriceBits = 112

var (
	q112     = new(big.Int).Lsh(big.NewInt(1), PriceBits)
	q112Dec  = decimal.NewFromBigInt(q112, 0)
	bpsScale = big.NewInt(10_000)
)

// PriceFromDecimal converts a human price (value units per smallest unit of
// the asset) into Q112 fixed point, truncating below 2^-112.
func PriceFromDecimal(d decimal.Decimal) (*big.Int, error) {
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, d.String())
	}
	return d.Mul(q112Dec).Truncate(0).BigInt(), nil
}

// ParsePrice parses a decimal string into a Q112 price.
func ParsePrice(raw string) (*big.Int, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("oracle: parse price %q: %w", raw, err)
	}
	return PriceFromDecimal(d)
}

// PriceToDecimal renders a Q112 price back to a decimal.
func PriceToDecimal(px *big.Int) decimal.Decimal {
	if px == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(px, 0).DivRound(q112Dec, 18)
}

// Value applies a Q112 price to amount: amount*px >> 112.
func Value(amount, px *big.Int) *big.Int {
	if amount == nil || px == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, px)
	return out.Rsh(out, PriceBits)
}
