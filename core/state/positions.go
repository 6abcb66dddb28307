package state

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// DebtShare is one bank entry of a position's debt.
type DebtShare struct {
	Bank   common.Address
	Shares *big.Int
}

// PositionRecord is the persisted form of a leveraged position. Debts are
// kept sorted by bank address and never hold zero entries.
type PositionRecord struct {
	ID              uint64
	Owner           common.Address
	CollateralToken common.Address
	CollateralSize  *big.Int
	Debts           []DebtShare
}

func (p *PositionRecord) ensure() {
	if p.CollateralSize == nil {
		p.CollateralSize = new(big.Int)
	}
	for i := range p.Debts {
		if p.Debts[i].Shares == nil {
			p.Debts[i].Shares = new(big.Int)
		}
	}
}

// SharesOf returns a copy of the shares held in bank.
func (p *PositionRecord) SharesOf(bank common.Address) *big.Int {
	for _, d := range p.Debts {
		if d.Bank == bank {
			return new(big.Int).Set(d.Shares)
		}
	}
	return new(big.Int)
}

// SetShares replaces the shares held in bank. A zero value removes the entry.
func (p *PositionRecord) SetShares(bank common.Address, shares *big.Int) {
	idx := sort.Search(len(p.Debts), func(i int) bool {
		return bytes.Compare(p.Debts[i].Bank.Bytes(), bank.Bytes()) >= 0
	})
	found := idx < len(p.Debts) && p.Debts[idx].Bank == bank
	switch {
	case shares == nil || shares.Sign() == 0:
		if found {
			p.Debts = append(p.Debts[:idx], p.Debts[idx+1:]...)
		}
	case found:
		p.Debts[idx].Shares = new(big.Int).Set(shares)
	default:
		p.Debts = append(p.Debts, DebtShare{})
		copy(p.Debts[idx+1:], p.Debts[idx:])
		p.Debts[idx] = DebtShare{Bank: bank, Shares: new(big.Int).Set(shares)}
	}
}

// Position loads a position by id.
func (m *Manager) Position(id uint64) (*PositionRecord, bool, error) {
	rec := new(PositionRecord)
	ok, err := m.get(positionKey(id), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	rec.ensure()
	return rec, true, nil
}

// PutPosition stores the position keyed by its id.
func (m *Manager) PutPosition(rec *PositionRecord) error {
	rec.ensure()
	return m.put(positionKey(rec.ID), rec)
}

// NextPositionID returns the id the next new position receives. Ids start at 1.
func (m *Manager) NextPositionID() (uint64, error) {
	var next uint64
	ok, err := m.get(nextPositionKey, &next)
	if err != nil {
		return 0, err
	}
	if !ok || next == 0 {
		return 1, nil
	}
	return next, nil
}

func (m *Manager) SetNextPositionID(next uint64) error {
	return m.put(nextPositionKey, next)
}
