package bank

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/state"
)

// Context is the capability handle a spell receives for the position being
// executed. It is only valid while its Execute call is running; afterwards
// every capability fails with ErrNoActiveContext.
//
// A capability that returns an error leaves no partial writes behind, so a
// spell may recover from it and carry on.
type Context struct {
	engine      *Engine
	positionID  uint64
	owner       common.Address
	caller      common.Address
	executionID string
	escrow      *big.Int
}

func (c *Context) PositionID() uint64 { return c.positionID }

func (c *Context) Owner() common.Address { return c.owner }

func (c *Context) Caller() common.Address { return c.caller }

// ExecutionID identifies this Execute call in logs and events.
func (c *Context) ExecutionID() string { return c.executionID }

// Escrow returns the native value attached to the call that has not been
// used for repayment yet. It is refunded to the caller when the spell ends.
func (c *Context) Escrow() *big.Int { return new(big.Int).Set(c.escrow) }

// Active reports whether c is the engine's current context.
func (c *Context) Active() bool {
	return c != nil && c.engine != nil && c.engine.active == c && c.positionID != 0
}

func (c *Context) position() (*state.PositionRecord, error) {
	if !c.Active() {
		return nil, ErrNoActiveContext
	}
	pos, ok, err := c.engine.state.Position(c.positionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return pos, nil
}

// Position returns a snapshot of the bound position including pending
// changes.
func (c *Context) Position() (PositionInfo, error) {
	pos, err := c.position()
	if err != nil {
		return PositionInfo{}, err
	}
	return c.engine.positionInfo(pos)
}

// DebtOf returns the bound position's current debt in bank.
func (c *Context) DebtOf(bank common.Address) (*big.Int, error) {
	pos, err := c.position()
	if err != nil {
		return nil, err
	}
	return c.engine.debtOf(pos, bank)
}

// PutCollateral moves amount of token from the owner into custody.
func (c *Context) PutCollateral(token common.Address, amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	return c.engine.putCollateral(pos, token, amount)
}

// TakeCollateral returns amount of token from custody to the owner.
// MaxAmount takes everything.
func (c *Context) TakeCollateral(token common.Address, amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	return c.engine.takeCollateral(pos, token, amount)
}

// Borrow draws amount of bank's underlying to the owner.
func (c *Context) Borrow(bank common.Address, amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	return c.engine.borrow(pos, bank, amount, pos.Owner)
}

// Repay returns up to amount of bank's underlying from the owner. Amounts
// above the outstanding debt are capped; MaxAmount repays in full.
func (c *Context) Repay(bank common.Address, amount *big.Int) error {
	pos, err := c.position()
	if err != nil {
		return err
	}
	_, err = c.engine.repay(pos, bank, amount, pos.Owner)
	return err
}
