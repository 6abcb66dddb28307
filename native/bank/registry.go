package bank

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/events"
	"lendcore/core/state"
	nativecommon "lendcore/native/common"
)

// AddBank lists underlying for borrowing with wrapped as its liquidity vault.
// Only the admin may list, and each wrapped token can back one bank.
func (e *Engine) AddBank(caller, underlying, wrapped common.Address) error {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.ready(); err != nil {
		return err
	}
	if e.active != nil {
		return ErrContextBusy
	}
	if caller != e.admin {
		return ErrUnauthorized
	}
	if underlying == (common.Address{}) || wrapped == (common.Address{}) || underlying == wrapped {
		return ErrInvalidAsset
	}
	err := e.addBank(underlying, wrapped)
	if err = e.settle(err); err != nil {
		return err
	}
	e.logger.Info("bank listed", "underlying", underlying.Hex(), "wrapped", wrapped.Hex())
	return nil
}

func (e *Engine) addBank(underlying, wrapped common.Address) error {
	if existing, ok, err := e.state.Bank(underlying); err != nil {
		return err
	} else if ok && existing.IsListed {
		return fmt.Errorf("%w: %s", ErrAlreadyListed, underlying.Hex())
	}
	if owner, ok, err := e.state.WrappedOwner(wrapped); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: wrapped token %s already backs %s", ErrAlreadyListed, wrapped.Hex(), owner.Hex())
	}
	index, err := e.state.AppendBank(underlying)
	if err != nil {
		return err
	}
	rec := &state.BankRecord{
		Underlying:     underlying,
		WrappedToken:   wrapped,
		Index:          index,
		IsListed:       true,
		TotalDebt:      new(big.Int),
		TotalDebtShare: new(big.Int),
	}
	if err := e.state.PutBank(rec); err != nil {
		return err
	}
	if err := e.state.BindWrapped(wrapped, underlying); err != nil {
		return err
	}
	e.emit(events.BankListed{Underlying: underlying, Wrapped: wrapped, Index: index})
	return nil
}

func (e *Engine) listedBank(underlying common.Address) (*state.BankRecord, error) {
	rec, ok, err := e.state.Bank(underlying)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.IsListed {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, underlying.Hex())
	}
	return rec, nil
}

// borrow mints debt shares for the position and sends amount of the
// underlying from the bank vault to recipient.
func (e *Engine) borrow(pos *state.PositionRecord, underlying common.Address, amount *big.Int, recipient common.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	bank, err := e.listedBank(underlying)
	if err != nil {
		return err
	}
	shares, err := borrowShares(amount, bank.TotalDebt, bank.TotalDebtShare)
	if err != nil {
		return err
	}
	if shares.Sign() == 0 {
		return fmt.Errorf("%w: borrow of %s mints no shares", ErrZeroAmount, amount)
	}
	if bank.TotalDebt, err = checkedAdd(bank.TotalDebt, amount); err != nil {
		return err
	}
	if bank.TotalDebtShare, err = checkedAdd(bank.TotalDebtShare, shares); err != nil {
		return err
	}
	held, err := checkedAdd(pos.SharesOf(underlying), shares)
	if err != nil {
		return err
	}
	if err := e.state.Transfer(underlying, bank.WrappedToken, recipient, amount); err != nil {
		return fmt.Errorf("bank: borrow %s: %w", underlying.Hex(), err)
	}
	pos.SetShares(underlying, held)
	if err := e.state.PutBank(bank); err != nil {
		return err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emit(events.Borrow{PositionID: pos.ID, Bank: underlying, Amount: new(big.Int).Set(amount), Shares: shares})
	return nil
}

// repay retires debt shares of the position, pulling the underlying from
// payer into the bank vault. Requests above the outstanding debt are capped
// at the position's shares and the pulled amount is rounded up. It returns
// the amount actually pulled.
func (e *Engine) repay(pos *state.PositionRecord, underlying common.Address, amount *big.Int, payer common.Address) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	bank, err := e.listedBank(underlying)
	if err != nil {
		return nil, err
	}
	held := pos.SharesOf(underlying)
	if held.Sign() == 0 {
		return nil, fmt.Errorf("%w: position %d holds no %s debt", ErrExcessRepay, pos.ID, underlying.Hex())
	}
	var shares *big.Int
	if amount.Cmp(bank.TotalDebt) < 0 {
		if shares, err = mulDivDown(amount, bank.TotalDebtShare, bank.TotalDebt); err != nil {
			return nil, err
		}
	}
	if shares == nil || shares.Cmp(held) > 0 {
		shares = held
		if amount, err = mulDivUp(held, bank.TotalDebt, bank.TotalDebtShare); err != nil {
			return nil, err
		}
	}
	newDebt, err := checkedSub(bank.TotalDebt, amount)
	if err != nil {
		return nil, err
	}
	newShare, err := checkedSub(bank.TotalDebtShare, shares)
	if err != nil {
		return nil, err
	}
	if newDebt.Sign() == 0 && newShare.Sign() != 0 {
		return nil, fmt.Errorf("%w: repay would leave shares without debt", ErrArithmetic)
	}
	bank.TotalDebt, bank.TotalDebtShare = newDebt, newShare
	pos.SetShares(underlying, new(big.Int).Sub(held, shares))
	if err := e.state.Transfer(underlying, payer, bank.WrappedToken, amount); err != nil {
		return nil, fmt.Errorf("bank: repay %s: %w", underlying.Hex(), err)
	}
	if err := e.state.PutBank(bank); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	e.emit(events.Repay{PositionID: pos.ID, Bank: underlying, Payer: payer, Amount: new(big.Int).Set(amount), Shares: shares})
	return amount, nil
}

func (e *Engine) debtOf(pos *state.PositionRecord, underlying common.Address) (*big.Int, error) {
	shares := pos.SharesOf(underlying)
	if shares.Sign() == 0 {
		return new(big.Int), nil
	}
	bank, ok, err := e.state.Bank(underlying)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, underlying.Hex())
	}
	return debtFor(shares, bank.TotalDebt, bank.TotalDebtShare)
}
