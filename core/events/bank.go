package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/types"
)

const (
	// TypeBankListed is emitted when a new asset is registered for borrowing.
	TypeBankListed = "bank.listed"
	// TypeBorrow is emitted when a position draws debt from a bank.
	TypeBorrow = "bank.borrow"
	// TypeRepay is emitted when debt is returned to a bank.
	TypeRepay = "bank.repay"
	// TypeCollateralPut is emitted when collateral is deposited into a position.
	TypeCollateralPut = "bank.collateral.put"
	// TypeCollateralTake is emitted when collateral leaves a position.
	TypeCollateralTake = "bank.collateral.take"
	// TypeExecute is emitted once per committed execution.
	TypeExecute = "bank.execute"
)

type BankListed struct {
	Underlying common.Address
	Wrapped    common.Address
	Index      uint64
}

func (BankListed) EventType() string { return TypeBankListed }

func (e BankListed) Event() *types.Event {
	return &types.Event{Type: TypeBankListed, Attributes: map[string]string{
		"underlying": formatAddress(e.Underlying),
		"wrapped":    formatAddress(e.Wrapped),
		"index":      formatID(e.Index),
	}}
}

type Borrow struct {
	PositionID uint64
	Bank       common.Address
	Amount     *big.Int
	Shares     *big.Int
}

func (Borrow) EventType() string { return TypeBorrow }

func (e Borrow) Event() *types.Event {
	return &types.Event{Type: TypeBorrow, Attributes: map[string]string{
		"positionId": formatID(e.PositionID),
		"bank":       formatAddress(e.Bank),
		"amount":     formatAmount(e.Amount),
		"shares":     formatAmount(e.Shares),
	}}
}

type Repay struct {
	PositionID uint64
	Bank       common.Address
	Payer      common.Address
	Amount     *big.Int
	Shares     *big.Int
}

func (Repay) EventType() string { return TypeRepay }

func (e Repay) Event() *types.Event {
	return &types.Event{Type: TypeRepay, Attributes: map[string]string{
		"positionId": formatID(e.PositionID),
		"bank":       formatAddress(e.Bank),
		"payer":      formatAddress(e.Payer),
		"amount":     formatAmount(e.Amount),
		"shares":     formatAmount(e.Shares),
	}}
}

type CollateralPut struct {
	PositionID uint64
	Token      common.Address
	Amount     *big.Int
}

func (CollateralPut) EventType() string { return TypeCollateralPut }

func (e CollateralPut) Event() *types.Event {
	return &types.Event{Type: TypeCollateralPut, Attributes: map[string]string{
		"positionId": formatID(e.PositionID),
		"token":      formatAddress(e.Token),
		"amount":     formatAmount(e.Amount),
	}}
}

type CollateralTake struct {
	PositionID uint64
	Token      common.Address
	Amount     *big.Int
}

func (CollateralTake) EventType() string { return TypeCollateralTake }

func (e CollateralTake) Event() *types.Event {
	return &types.Event{Type: TypeCollateralTake, Attributes: map[string]string{
		"positionId": formatID(e.PositionID),
		"token":      formatAddress(e.Token),
		"amount":     formatAmount(e.Amount),
	}}
}

// Executed closes out a committed execution. It is always the last event of
// its batch.
type Executed struct {
	PositionID  uint64
	Caller      common.Address
	Spell       string
	ExecutionID string
	Created     bool
}

func (Executed) EventType() string { return TypeExecute }

func (e Executed) Event() *types.Event {
	attrs := map[string]string{
		"positionId": formatID(e.PositionID),
		"caller":     formatAddress(e.Caller),
		"spell":      e.Spell,
	}
	if e.ExecutionID != "" {
		attrs["executionId"] = e.ExecutionID
	}
	if e.Created {
		attrs["created"] = "true"
	}
	return &types.Event{Type: TypeExecute, Attributes: attrs}
}
