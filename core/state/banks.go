package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BankRecord is the persisted debt pool of one listed asset.
type BankRecord struct {
	Underlying     common.Address
	WrappedToken   common.Address
	Index          uint64
	IsListed       bool
	TotalDebt      *big.Int
	TotalDebtShare *big.Int
}

func (b *BankRecord) ensure() {
	if b.TotalDebt == nil {
		b.TotalDebt = new(big.Int)
	}
	if b.TotalDebtShare == nil {
		b.TotalDebtShare = new(big.Int)
	}
}

// Bank loads the pool for underlying.
func (m *Manager) Bank(underlying common.Address) (*BankRecord, bool, error) {
	rec := new(BankRecord)
	ok, err := m.get(bankKey(underlying), rec)
	if err != nil || !ok {
		return nil, false, err
	}
	rec.ensure()
	return rec, true, nil
}

// PutBank stores the pool record keyed by its underlying asset.
func (m *Manager) PutBank(rec *BankRecord) error {
	rec.ensure()
	return m.put(bankKey(rec.Underlying), rec)
}

// BankList returns the listed underlyings in listing order.
func (m *Manager) BankList() ([]common.Address, error) {
	var list []common.Address
	if _, err := m.get(bankListKey, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []common.Address{}
	}
	return list, nil
}

// AppendBank adds underlying to the listing order and returns its index.
func (m *Manager) AppendBank(underlying common.Address) (uint64, error) {
	list, err := m.BankList()
	if err != nil {
		return 0, err
	}
	index := uint64(len(list))
	list = append(list, underlying)
	if err := m.put(bankListKey, list); err != nil {
		return 0, err
	}
	return index, nil
}

// BindWrapped records that wrapped backs the bank of underlying.
func (m *Manager) BindWrapped(wrapped, underlying common.Address) error {
	return m.put(wrappedKey(wrapped), underlying)
}

// WrappedOwner returns the underlying whose bank uses wrapped, if any.
func (m *Manager) WrappedOwner(wrapped common.Address) (common.Address, bool, error) {
	var underlying common.Address
	ok, err := m.get(wrappedKey(wrapped), &underlying)
	return underlying, ok, err
}
