package bank

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"lendcore/core/state"
)

// BankInfo is the read view of a listed bank together with its oracle
// factors.
type BankInfo struct {
	Underlying          common.Address `json:"underlying"`
	WrappedToken        common.Address `json:"wrappedToken"`
	Index               uint64         `json:"index"`
	IsListed            bool           `json:"isListed"`
	TotalDebt           *big.Int       `json:"totalDebt"`
	TotalDebtShare      *big.Int       `json:"totalDebtShare"`
	CollateralFactorBps uint64         `json:"collateralFactorBps"`
	BorrowFactorBps     uint64         `json:"borrowFactorBps"`
}

// DebtInfo is one bank entry of a position's debt.
type DebtInfo struct {
	Bank   common.Address `json:"bank"`
	Shares *big.Int       `json:"shares"`
	Amount *big.Int       `json:"amount"`
}

// PositionInfo is the read view of a position.
type PositionInfo struct {
	ID              uint64         `json:"id"`
	Owner           common.Address `json:"owner"`
	CollateralToken common.Address `json:"collateralToken"`
	CollateralSize  *big.Int       `json:"collateralSize"`
	Debts           []DebtInfo     `json:"debts"`
	DebtMap         *big.Int       `json:"debtMap"`
}

func (e *Engine) bankInfo(rec *state.BankRecord) BankInfo {
	info := BankInfo{
		Underlying:     rec.Underlying,
		WrappedToken:   rec.WrappedToken,
		Index:          rec.Index,
		IsListed:       rec.IsListed,
		TotalDebt:      new(big.Int).Set(rec.TotalDebt),
		TotalDebtShare: new(big.Int).Set(rec.TotalDebtShare),
	}
	if e.oracle != nil {
		if cfg, ok := e.oracle.Factors(rec.Underlying); ok {
			info.CollateralFactorBps = cfg.CollateralFactorBps
			info.BorrowFactorBps = cfg.BorrowFactorBps
		}
	}
	return info
}

// Bank returns the bank listed for underlying.
func (e *Engine) Bank(underlying common.Address) (BankInfo, error) {
	if err := e.ready(); err != nil {
		return BankInfo{}, err
	}
	rec, err := e.listedBank(underlying)
	if err != nil {
		return BankInfo{}, err
	}
	return e.bankInfo(rec), nil
}

// AllBanks returns every listed bank in listing order.
func (e *Engine) AllBanks() ([]BankInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	list, err := e.state.BankList()
	if err != nil {
		return nil, err
	}
	out := make([]BankInfo, 0, len(list))
	for _, underlying := range list {
		rec, err := e.listedBank(underlying)
		if err != nil {
			return nil, err
		}
		out = append(out, e.bankInfo(rec))
	}
	return out, nil
}

// BankAt returns the bank with the given listing index.
func (e *Engine) BankAt(index uint64) (BankInfo, error) {
	if err := e.ready(); err != nil {
		return BankInfo{}, err
	}
	list, err := e.state.BankList()
	if err != nil {
		return BankInfo{}, err
	}
	if index >= uint64(len(list)) {
		return BankInfo{}, fmt.Errorf("%w: bank index %d", ErrNotFound, index)
	}
	return e.Bank(list[index])
}

// IsWrappedInBank reports whether wrapped already backs a bank.
func (e *Engine) IsWrappedInBank(wrapped common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	_, ok, err := e.state.WrappedOwner(wrapped)
	return ok, err
}

// NextPositionID returns the id the next opened position receives.
func (e *Engine) NextPositionID() (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.state.NextPositionID()
}

func (e *Engine) loadPosition(id uint64) (*state.PositionRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, ok, err := e.state.Position(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: position %d", ErrNotFound, id)
	}
	return pos, nil
}

func (e *Engine) positionInfo(pos *state.PositionRecord) (PositionInfo, error) {
	info := PositionInfo{
		ID:              pos.ID,
		Owner:           pos.Owner,
		CollateralToken: pos.CollateralToken,
		CollateralSize:  new(big.Int).Set(pos.CollateralSize),
		Debts:           make([]DebtInfo, 0, len(pos.Debts)),
		DebtMap:         new(big.Int),
	}
	for _, d := range pos.Debts {
		bank, ok, err := e.state.Bank(d.Bank)
		if err != nil {
			return PositionInfo{}, err
		}
		if !ok {
			return PositionInfo{}, fmt.Errorf("%w: %s", ErrNotListed, d.Bank.Hex())
		}
		amount, err := debtFor(d.Shares, bank.TotalDebt, bank.TotalDebtShare)
		if err != nil {
			return PositionInfo{}, err
		}
		info.Debts = append(info.Debts, DebtInfo{Bank: d.Bank, Shares: new(big.Int).Set(d.Shares), Amount: amount})
		info.DebtMap.SetBit(info.DebtMap, int(bank.Index), 1)
	}
	return info, nil
}

// Position returns the position with the given id.
func (e *Engine) Position(id uint64) (PositionInfo, error) {
	pos, err := e.loadPosition(id)
	if err != nil {
		return PositionInfo{}, err
	}
	return e.positionInfo(pos)
}

// DebtOf returns floor(shares * totalDebt / totalDebtShare) for the
// position's holding in bank.
func (e *Engine) DebtOf(id uint64, bank common.Address) (*big.Int, error) {
	pos, err := e.loadPosition(id)
	if err != nil {
		return nil, err
	}
	return e.debtOf(pos, bank)
}

// DebtBitmap has bit i set when the position owes the bank with index i.
func (e *Engine) DebtBitmap(id uint64) (*big.Int, error) {
	info, err := e.Position(id)
	if err != nil {
		return nil, err
	}
	return info.DebtMap, nil
}

// CollateralValue returns the position's factor-adjusted collateral value.
func (e *Engine) CollateralValue(ctx context.Context, id uint64) (*big.Int, error) {
	pos, err := e.loadPosition(id)
	if err != nil {
		return nil, err
	}
	if e.oracle == nil {
		return nil, errNilOracle
	}
	return e.collateralValue(ctx, pos)
}

// BorrowValue returns the position's factor-adjusted debt value.
func (e *Engine) BorrowValue(ctx context.Context, id uint64) (*big.Int, error) {
	pos, err := e.loadPosition(id)
	if err != nil {
		return nil, err
	}
	if e.oracle == nil {
		return nil, errNilOracle
	}
	return e.borrowValue(ctx, pos)
}

// Balance returns holder's ledger balance of asset.
func (e *Engine) Balance(asset, holder common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.state.Balance(asset, holder)
}

// StateRoot returns the state root including writes of a running execution.
func (e *Engine) StateRoot() common.Hash {
	if e.state == nil {
		return common.Hash{}
	}
	return e.state.Hash()
}
