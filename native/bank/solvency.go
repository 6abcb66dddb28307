package bank

import (
	"context"
	"fmt"
	"math/big"

	"lendcore/core/state"
)

func (e *Engine) collateralValue(ctx context.Context, pos *state.PositionRecord) (*big.Int, error) {
	if pos.CollateralSize.Sign() == 0 {
		return new(big.Int), nil
	}
	return e.oracle.CollateralValue(ctx, pos.CollateralToken, pos.CollateralSize)
}

func (e *Engine) borrowValue(ctx context.Context, pos *state.PositionRecord) (*big.Int, error) {
	total := new(big.Int)
	for _, d := range pos.Debts {
		debt, err := e.debtOf(pos, d.Bank)
		if err != nil {
			return nil, err
		}
		if debt.Sign() == 0 {
			continue
		}
		value, err := e.oracle.BorrowValue(ctx, d.Bank, debt)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

func (e *Engine) checkSolvency(ctx context.Context, id uint64) error {
	pos, ok, err := e.state.Position(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: position %d", ErrNotFound, id)
	}
	debt, err := e.borrowValue(ctx, pos)
	if err != nil {
		return err
	}
	if debt.Sign() == 0 {
		return nil
	}
	coll, err := e.collateralValue(ctx, pos)
	if err != nil {
		return err
	}
	if coll.Cmp(debt) < 0 {
		return fmt.Errorf("%w: position %d collateral value %s below debt value %s", ErrInsolvent, id, coll, debt)
	}
	return nil
}
