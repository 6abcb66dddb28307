package bank

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lendcore/core/events"
	nativecommon "lendcore/native/common"
)

// Spell is a strategy module run on behalf of a position. It acts only
// through the Context it is handed.
type Spell interface {
	Name() string
	Cast(ctx context.Context, ec *Context, data []byte) error
}

type funcSpell struct {
	name string
	fn   func(context.Context, *Context, []byte) error
}

func (s funcSpell) Name() string { return s.name }

func (s funcSpell) Cast(ctx context.Context, ec *Context, data []byte) error {
	return s.fn(ctx, ec, data)
}

// NewSpell adapts a function into a Spell.
func NewSpell(name string, fn func(ctx context.Context, ec *Context, data []byte) error) Spell {
	return funcSpell{name: name, fn: fn}
}

// ExecuteRequest describes one Execute call. PositionID 0 opens a new
// position. CollateralAmount of CollateralToken is deposited before the
// spell runs; NativeValue is escrowed for RepayNative and any remainder is
// refunded afterwards.
type ExecuteRequest struct {
	Caller           common.Address
	PositionID       uint64
	Spell            Spell
	CollateralToken  common.Address
	CollateralAmount *big.Int
	NativeValue      *big.Int
	Data             []byte
}

// Execute binds a context to the requested position, runs the spell and
// commits only if the position ends up solvent. Any failure reverts every
// write made during the call and is returned to the caller.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (uint64, error) {
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.oracle == nil {
		return 0, errNilOracle
	}
	if e.active != nil {
		return 0, ErrContextBusy
	}
	if req.Spell == nil {
		return 0, ErrNilSpell
	}

	started := time.Now()
	ec := &Context{
		engine:      e,
		caller:      req.Caller,
		executionID: uuid.NewString(),
		escrow:      new(big.Int),
	}
	spellName := req.Spell.Name()
	ctx, span := e.tracer().Start(ctx, "bank.Execute", trace.WithAttributes(
		attribute.String("bank.spell", spellName),
		attribute.String("bank.execution_id", ec.executionID),
		attribute.Int64("bank.position_id", int64(req.PositionID)),
	))
	defer span.End()

	id, created, err := e.run(ctx, ec, req)
	err = e.settle(err)

	logger := e.logger.With(
		"executionID", ec.executionID,
		"positionID", ec.positionID,
		"spell", spellName,
	)
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorReason(err))
		logger.Warn("bank execution reverted", "error", err, "reason", ErrorReason(err))
	} else {
		logger.Info("bank execution committed", "created", created)
	}
	if e.metrics != nil {
		e.metrics.ObserveExecute(spellName, outcome, ErrorReason(err), time.Since(started))
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

// run binds ec as the active context for the duration of execute. A panic
// raised below it is returned as ErrSpellPanic so the caller still reverts.
func (e *Engine) run(ctx context.Context, ec *Context, req ExecuteRequest) (id uint64, created bool, err error) {
	e.active = ec
	defer func() {
		e.active = nil
		if r := recover(); r != nil {
			id, created, err = 0, false, fmt.Errorf("%w: %s: %v", ErrSpellPanic, req.Spell.Name(), r)
		}
	}()
	return e.execute(ctx, ec, req)
}

func (e *Engine) execute(ctx context.Context, ec *Context, req ExecuteRequest) (uint64, bool, error) {
	if req.NativeValue != nil && req.NativeValue.Sign() < 0 {
		return 0, false, ErrZeroAmount
	}
	if req.CollateralAmount != nil && req.CollateralAmount.Sign() < 0 {
		return 0, false, ErrZeroAmount
	}
	if req.NativeValue != nil && req.NativeValue.Sign() > 0 {
		if err := e.state.Transfer(NativeAsset, req.Caller, e.moduleAddress, req.NativeValue); err != nil {
			return 0, false, fmt.Errorf("bank: escrow native value: %w", err)
		}
		ec.escrow.Set(req.NativeValue)
	}

	pos, created, err := e.openPosition(req.PositionID, req.Caller)
	if err != nil {
		return 0, false, err
	}
	ec.positionID = pos.ID
	ec.owner = pos.Owner

	if req.CollateralAmount != nil && req.CollateralAmount.Sign() > 0 {
		if err := e.putCollateral(pos, req.CollateralToken, req.CollateralAmount); err != nil {
			return 0, false, err
		}
	}

	if err := req.Spell.Cast(ctx, ec, req.Data); err != nil {
		return 0, false, fmt.Errorf("bank: spell %s: %w", req.Spell.Name(), err)
	}

	if ec.escrow.Sign() > 0 {
		if err := e.state.Transfer(NativeAsset, e.moduleAddress, req.Caller, ec.escrow); err != nil {
			return 0, false, fmt.Errorf("bank: refund native value: %w", err)
		}
		ec.escrow.SetInt64(0)
	}

	if err := e.checkSolvency(ctx, pos.ID); err != nil {
		return 0, false, err
	}
	e.emit(events.Executed{
		PositionID:  pos.ID,
		Caller:      req.Caller,
		Spell:       req.Spell.Name(),
		ExecutionID: ec.executionID,
		Created:     created,
	})
	return pos.ID, created, nil
}

// ActivePosition reports the position bound to the running execution.
func (e *Engine) ActivePosition() (uint64, bool) {
	if e.active == nil || e.active.positionID == 0 {
		return 0, false
	}
	return e.active.positionID, true
}
