package spell

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"lendcore/native/bank"
)

// HouseholdName is the registry name of the household spell.
const HouseholdName = "household"

const maxBatchDepth = 4

var (
	ErrUnknownMethod = errors.New("spell: unknown method")
	ErrMalformed     = errors.New("spell: malformed call data")
	ErrBatchDepth    = errors.New("spell: batch nested too deeply")
)

const householdABI = `[
	{"type":"function","name":"putCollateral","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"takeCollateral","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"borrow","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"repay","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"borrowNative","inputs":[{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"repayNative","inputs":[{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"wrapNative","inputs":[{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"unwrapNative","inputs":[{"name":"amount","type":"uint256"}]},
	{"type":"function","name":"batch","inputs":[{"name":"calls","type":"bytes[]"}]}
]`

var householdSpec = mustParse(householdABI)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("spell: parse abi: %v", err))
	}
	return parsed
}

// Household exposes the raw capability set through ABI-encoded calls. It is
// the spell used for plain deposits, withdrawals, borrows and repayments.
type Household struct{}

func (Household) Name() string { return HouseholdName }

// Cast decodes data as a single call (possibly a batch) and applies it. Empty
// data does nothing.
func (h Household) Cast(ctx context.Context, ec *bank.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return h.dispatch(ctx, ec, data, 0)
}

func (h Household) dispatch(ctx context.Context, ec *bank.Context, data []byte, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) < 4 {
		return fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	method, err := householdSpec.MethodById(data[:4])
	if err != nil {
		return fmt.Errorf("%w: selector %x", ErrUnknownMethod, data[:4])
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, method.Name, err)
	}

	switch method.Name {
	case "batch":
		if depth >= maxBatchDepth {
			return ErrBatchDepth
		}
		calls, ok := args[0].([][]byte)
		if !ok {
			return fmt.Errorf("%w: batch", ErrMalformed)
		}
		for i, call := range calls {
			if err := h.dispatch(ctx, ec, call, depth+1); err != nil {
				return fmt.Errorf("batch call %d: %w", i, err)
			}
		}
		return nil
	case "borrowNative", "repayNative", "wrapNative", "unwrapNative":
		amount, ok := args[0].(*big.Int)
		if !ok {
			return fmt.Errorf("%w: %s", ErrMalformed, method.Name)
		}
		switch method.Name {
		case "borrowNative":
			return ec.BorrowNative(amount)
		case "repayNative":
			return ec.RepayNative(amount)
		case "wrapNative":
			return ec.WrapNative(amount)
		default:
			return ec.UnwrapNative(amount)
		}
	default:
		token, ok := args[0].(common.Address)
		if !ok {
			return fmt.Errorf("%w: %s token", ErrMalformed, method.Name)
		}
		amount, ok := args[1].(*big.Int)
		if !ok {
			return fmt.Errorf("%w: %s amount", ErrMalformed, method.Name)
		}
		switch method.Name {
		case "putCollateral":
			return ec.PutCollateral(token, amount)
		case "takeCollateral":
			return ec.TakeCollateral(token, amount)
		case "borrow":
			return ec.Borrow(token, amount)
		case "repay":
			return ec.Repay(token, amount)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownMethod, method.Name)
}

// Encode packs a household call.
func Encode(method string, args ...interface{}) ([]byte, error) {
	if _, ok := householdSpec.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return householdSpec.Pack(method, args...)
}

// Batch packs several encoded calls into one batch call.
func Batch(calls ...[]byte) ([]byte, error) {
	return householdSpec.Pack("batch", calls)
}

// Methods lists the callable method signatures in sorted order.
func Methods() []string {
	out := make([]string, 0, len(householdSpec.Methods))
	for _, m := range householdSpec.Methods {
		out = append(out, m.Sig)
	}
	sort.Strings(out)
	return out
}
