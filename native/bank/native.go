package bank

import (
	"fmt"
	"math/big"

	"lendcore/core/state"
)

// BorrowNative borrows amount from the wrapped-native bank, unwraps it in
// custody and pays the native currency out to the owner.
func (c *Context) BorrowNative(amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	e := c.engine
	if err := e.borrow(pos, e.wrappedNative, amount, e.moduleAddress); err != nil {
		return err
	}
	if err := e.state.Unwrap(NativeAsset, e.wrappedNative, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("bank: unwrap borrowed native: %w", err)
	}
	return e.state.Transfer(NativeAsset, e.moduleAddress, pos.Owner, amount)
}

// RepayNative repays the wrapped-native bank out of the native value
// attached to the call. Whatever the cap leaves unused stays in escrow.
// MaxAmount uses the whole escrow.
func (c *Context) RepayNative(amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	e := c.engine
	if amount != nil && isMax(amount) {
		amount = new(big.Int).Set(c.escrow)
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if amount.Cmp(c.escrow) > 0 {
		return fmt.Errorf("%w: repay %s exceeds escrowed %s", state.ErrInsufficientBalance, amount, c.escrow)
	}
	if _, err := e.listedBank(e.wrappedNative); err != nil {
		return err
	}
	if pos.SharesOf(e.wrappedNative).Sign() == 0 {
		return fmt.Errorf("%w: position %d holds no native debt", ErrExcessRepay, pos.ID)
	}
	if err := e.state.Wrap(NativeAsset, e.wrappedNative, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("bank: wrap escrowed native: %w", err)
	}
	paid, err := e.repay(pos, e.wrappedNative, amount, e.moduleAddress)
	if err != nil {
		if uerr := e.state.Unwrap(NativeAsset, e.wrappedNative, e.moduleAddress, amount); uerr != nil {
			return fmt.Errorf("bank: unwind wrap: %w", uerr)
		}
		return err
	}
	if leftover := new(big.Int).Sub(amount, paid); leftover.Sign() > 0 {
		if err := e.state.Unwrap(NativeAsset, e.wrappedNative, e.moduleAddress, leftover); err != nil {
			return fmt.Errorf("bank: unwrap leftover native: %w", err)
		}
	}
	c.escrow.Sub(c.escrow, paid)
	return nil
}

// WrapNative converts amount of the owner's native currency into the
// wrapped-native asset.
func (c *Context) WrapNative(amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return c.engine.state.Wrap(NativeAsset, c.engine.wrappedNative, pos.Owner, amount)
}

// UnwrapNative converts amount of the owner's wrapped-native asset back into
// native currency.
func (c *Context) UnwrapNative(amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return c.engine.state.Unwrap(NativeAsset, c.engine.wrappedNative, pos.Owner, amount)
}
