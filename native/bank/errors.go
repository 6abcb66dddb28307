package bank

import (
	"errors"

	"lendcore/core/state"
	nativecommon "lendcore/native/common"
	"lendcore/native/oracle"
)

var (
	ErrNotListed              = errors.New("bank: asset not listed")
	ErrAlreadyListed          = errors.New("bank: asset already listed")
	ErrInvalidAsset           = errors.New("bank: invalid asset")
	ErrZeroAmount             = errors.New("bank: amount must be positive")
	ErrExcessRepay            = errors.New("bank: no debt to repay")
	ErrInsufficientCollateral = errors.New("bank: insufficient collateral")
	ErrUnauthorized           = errors.New("bank: unauthorized")
	ErrNotFound               = errors.New("bank: not found")
	ErrContextBusy            = errors.New("bank: execution context busy")
	ErrNoActiveContext        = errors.New("bank: no active execution context")
	ErrInsolvent              = errors.New("bank: position insolvent")
	ErrArithmetic             = errors.New("bank: arithmetic fault")
	ErrNilSpell               = errors.New("bank: spell required")
	ErrSpellPanic             = errors.New("bank: spell panicked")

	errNilState  = errors.New("bank: state not configured")
	errNilOracle = errors.New("bank: oracle not configured")
)

// ErrorReason maps an error to a short label for metrics and API payloads.
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotListed):
		return "not_listed"
	case errors.Is(err, ErrAlreadyListed):
		return "already_listed"
	case errors.Is(err, ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, ErrZeroAmount):
		return "zero_amount"
	case errors.Is(err, ErrExcessRepay):
		return "excess_repay"
	case errors.Is(err, ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrContextBusy):
		return "context_busy"
	case errors.Is(err, ErrNoActiveContext):
		return "no_active_context"
	case errors.Is(err, ErrInsolvent):
		return "insolvent"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, ErrNilSpell):
		return "nil_spell"
	case errors.Is(err, ErrSpellPanic):
		return "spell_panic"
	case errors.Is(err, state.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, oracle.ErrUnsupported), errors.Is(err, oracle.ErrNoPrice):
		return "oracle"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "internal"
	}
}
