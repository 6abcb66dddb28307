package bank

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"lendcore/core/events"
	"lendcore/core/state"
	nativecommon "lendcore/native/common"
	"lendcore/native/oracle"
)

const moduleName = "bank"

const tracerName = "lendcore/native/bank"

// NativeAsset stands in for the chain's native currency in balance lookups.
var NativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

type engineState interface {
	Bank(underlying common.Address) (*state.BankRecord, bool, error)
	PutBank(rec *state.BankRecord) error
	BankList() ([]common.Address, error)
	AppendBank(underlying common.Address) (uint64, error)
	BindWrapped(wrapped, underlying common.Address) error
	WrappedOwner(wrapped common.Address) (common.Address, bool, error)
	Position(id uint64) (*state.PositionRecord, bool, error)
	PutPosition(rec *state.PositionRecord) error
	NextPositionID() (uint64, error)
	SetNextPositionID(next uint64) error
	Balance(asset, holder common.Address) (*big.Int, error)
	Transfer(asset, from, to common.Address, amount *big.Int) error
	Wrap(native, wrapped, holder common.Address, amount *big.Int) error
	Unwrap(native, wrapped, holder common.Address, amount *big.Int) error
	Hash() common.Hash
	Commit() (common.Hash, error)
	Revert() error
}

// Oracle values assets for the solvency check.
type Oracle interface {
	CollateralValue(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error)
	BorrowValue(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error)
	Factors(asset common.Address) (oracle.TokenConfig, bool)
}

// Metrics receives execution outcomes. Volume counters are fed from
// committed events instead so reverted work is never counted.
type Metrics interface {
	ObserveExecute(spell, outcome, reason string, elapsed time.Duration)
}

// Engine owns the bank registry and position ledger. Every mutation runs
// inside Execute or AddBank and is either committed in full or reverted.
//
// Engine is not safe for concurrent use; callers serialise whole calls.
type Engine struct {
	state         engineState
	oracle        Oracle
	admin         common.Address
	moduleAddress common.Address
	wrappedNative common.Address
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	buffer        events.Buffer
	logger        *slog.Logger
	metrics       Metrics
	active        *Context
}

// NewEngine constructs an engine. admin may list banks, moduleAddr holds
// collateral and escrowed native value, wrappedNative is the asset used by
// the native borrow and repay helpers.
func NewEngine(admin, moduleAddr, wrappedNative common.Address) *Engine {
	return &Engine{
		admin:         admin,
		moduleAddress: moduleAddr,
		wrappedNative: wrappedNative,
		emitter:       events.NoopEmitter{},
		logger:        slog.Default(),
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(s engineState) { e.state = s }

func (e *Engine) SetOracle(o Oracle) { e.oracle = o }

func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetEmitter sets the destination for committed events.
func (e *Engine) SetEmitter(em events.Emitter) {
	if em == nil {
		em = events.NoopEmitter{}
	}
	e.emitter = em
}

func (e *Engine) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	e.logger = l
}

func (e *Engine) SetMetrics(m Metrics) { e.metrics = m }

func (e *Engine) Admin() common.Address { return e.admin }

func (e *Engine) ModuleAddress() common.Address { return e.moduleAddress }

func (e *Engine) WrappedNative() common.Address { return e.wrappedNative }

func (e *Engine) tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	return nil
}

// settle commits pending writes and hands buffered events downstream when
// err is nil, and reverts both otherwise. The returned error is err, or the
// commit failure.
func (e *Engine) settle(err error) error {
	if err == nil {
		if _, cerr := e.state.Commit(); cerr != nil {
			err = cerr
		} else {
			e.buffer.Flush(e.emitter)
			return nil
		}
	}
	e.buffer.Discard()
	if rerr := e.state.Revert(); rerr != nil {
		e.logger.Error("bank: revert failed", "error", rerr)
	}
	return err
}

func (e *Engine) emit(evt events.Event) {
	e.buffer.Emit(evt)
}
