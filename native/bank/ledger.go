package bank

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/events"
	"lendcore/core/state"
)

// openPosition resolves the position an execution binds to. Id 0 allocates
// a fresh position owned by caller.
func (e *Engine) openPosition(id uint64, caller common.Address) (*state.PositionRecord, bool, error) {
	if id == 0 {
		next, err := e.state.NextPositionID()
		if err != nil {
			return nil, false, err
		}
		pos := &state.PositionRecord{ID: next, Owner: caller, CollateralSize: new(big.Int)}
		if err := e.state.PutPosition(pos); err != nil {
			return nil, false, err
		}
		if err := e.state.SetNextPositionID(next + 1); err != nil {
			return nil, false, err
		}
		return pos, true, nil
	}
	pos, ok, err := e.state.Position(id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("%w: position %d", ErrNotFound, id)
	}
	if pos.Owner != caller {
		return nil, false, fmt.Errorf("%w: position %d is owned by %s", ErrUnauthorized, id, pos.Owner.Hex())
	}
	return pos, false, nil
}

func (e *Engine) putCollateral(pos *state.PositionRecord, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if token == (common.Address{}) {
		return ErrInvalidAsset
	}
	if pos.CollateralSize.Sign() > 0 && pos.CollateralToken != token {
		return fmt.Errorf("%w: position %d holds %s collateral", ErrInvalidAsset, pos.ID, pos.CollateralToken.Hex())
	}
	size, err := checkedAdd(pos.CollateralSize, amount)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(token, pos.Owner, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("bank: put collateral: %w", err)
	}
	pos.CollateralToken = token
	pos.CollateralSize = size
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emit(events.CollateralPut{PositionID: pos.ID, Token: token, Amount: new(big.Int).Set(amount)})
	return nil
}

func (e *Engine) takeCollateral(pos *state.PositionRecord, token common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if token != pos.CollateralToken {
		return fmt.Errorf("%w: position %d holds %s collateral", ErrInvalidAsset, pos.ID, pos.CollateralToken.Hex())
	}
	if isMax(amount) {
		amount = new(big.Int).Set(pos.CollateralSize)
		if amount.Sign() == 0 {
			return fmt.Errorf("%w: position %d holds no collateral", ErrInsufficientCollateral, pos.ID)
		}
	}
	size, err := checkedSub(pos.CollateralSize, amount)
	if err != nil {
		return fmt.Errorf("%w: take %s of %s", ErrInsufficientCollateral, amount, pos.CollateralSize)
	}
	if err := e.state.Transfer(token, e.moduleAddress, pos.Owner, amount); err != nil {
		return fmt.Errorf("bank: take collateral: %w", err)
	}
	pos.CollateralSize = size
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emit(events.CollateralTake{PositionID: pos.ID, Token: token, Amount: new(big.Int).Set(amount)})
	return nil
}
