package bank

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxAmount requests "everything" from TakeCollateral and Repay.
var MaxAmount = new(uint256.Int).SetAllOne().ToBig()

func isMax(v *big.Int) bool {
	return v != nil && v.Cmp(MaxAmount) == 0
}

func u256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative operand %s", ErrArithmetic, v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: operand exceeds 256 bits", ErrArithmetic)
	}
	return out, nil
}

func operands(vals ...*big.Int) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(vals))
	for i, v := range vals {
		u, err := u256(v)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

// mulDivDown returns floor(a*b/d).
func mulDivDown(a, b, d *big.Int) (*big.Int, error) {
	ops, err := operands(a, b, d)
	if err != nil {
		return nil, err
	}
	if ops[2].IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	q, overflow := new(uint256.Int).MulDivOverflow(ops[0], ops[1], ops[2])
	if overflow {
		return nil, fmt.Errorf("%w: mul-div overflow", ErrArithmetic)
	}
	return q.ToBig(), nil
}

// mulDivUp returns ceil(a*b/d).
func mulDivUp(a, b, d *big.Int) (*big.Int, error) {
	ops, err := operands(a, b, d)
	if err != nil {
		return nil, err
	}
	if ops[2].IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	q, overflow := new(uint256.Int).MulDivOverflow(ops[0], ops[1], ops[2])
	if overflow {
		return nil, fmt.Errorf("%w: mul-div overflow", ErrArithmetic)
	}
	if rem := new(uint256.Int).MulMod(ops[0], ops[1], ops[2]); !rem.IsZero() {
		if _, overflow := q.AddOverflow(q, uint256.NewInt(1)); overflow {
			return nil, fmt.Errorf("%w: rounding overflow", ErrArithmetic)
		}
	}
	return q.ToBig(), nil
}

func checkedAdd(a, b *big.Int) (*big.Int, error) {
	ops, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(ops[0], ops[1])
	if overflow {
		return nil, fmt.Errorf("%w: addition overflow", ErrArithmetic)
	}
	return sum.ToBig(), nil
}

func checkedSub(a, b *big.Int) (*big.Int, error) {
	ops, err := operands(a, b)
	if err != nil {
		return nil, err
	}
	diff, underflow := new(uint256.Int).SubOverflow(ops[0], ops[1])
	if underflow {
		return nil, fmt.Errorf("%w: subtraction underflow", ErrArithmetic)
	}
	return diff.ToBig(), nil
}

// borrowShares is the number of shares minted for amount: amount itself on
// an empty pool, floor(amount*totalShare/totalDebt) otherwise.
func borrowShares(amount, totalDebt, totalShare *big.Int) (*big.Int, error) {
	if totalShare.Sign() == 0 {
		return new(big.Int).Set(amount), nil
	}
	if totalDebt.Sign() == 0 {
		return nil, fmt.Errorf("%w: pool holds shares without debt", ErrArithmetic)
	}
	return mulDivDown(amount, totalShare, totalDebt)
}

// debtFor converts shares to a debt amount, rounding down.
func debtFor(shares, totalDebt, totalShare *big.Int) (*big.Int, error) {
	if shares.Sign() == 0 || totalShare.Sign() == 0 {
		return new(big.Int), nil
	}
	return mulDivDown(shares, totalDebt, totalShare)
}
