package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("state: insufficient balance")
	ErrNegativeAmount      = errors.New("state: negative amount")
)

// Balance returns the holder's balance of asset. Unknown holders have zero.
func (m *Manager) Balance(asset, holder common.Address) (*big.Int, error) {
	amount := new(big.Int)
	if _, err := m.get(balanceKey(asset, holder), amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// SetBalance overwrites the holder's balance. Zero balances are deleted so
// the state root does not depend on how a balance reached zero.
func (m *Manager) SetBalance(asset, holder common.Address, amount *big.Int) error {
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	key := balanceKey(asset, holder)
	if amount.Sign() == 0 {
		return m.trie.Delete(key)
	}
	return m.put(key, amount)
}

// Mint credits amount of asset to holder.
func (m *Manager) Mint(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	current, err := m.Balance(asset, holder)
	if err != nil {
		return err
	}
	return m.SetBalance(asset, holder, current.Add(current, amount))
}

// Burn debits amount of asset from holder.
func (m *Manager) Burn(asset, holder common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	current, err := m.Balance(asset, holder)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, need %s", ErrInsufficientBalance, holder.Hex(), current, asset.Hex(), amount)
	}
	return m.SetBalance(asset, holder, current.Sub(current, amount))
}

// Transfer moves amount of asset from one holder to another.
func (m *Manager) Transfer(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if from == to {
		current, err := m.Balance(asset, from)
		if err != nil {
			return err
		}
		if current.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s holds %s of %s, need %s", ErrInsufficientBalance, from.Hex(), current, asset.Hex(), amount)
		}
		return nil
	}
	if err := m.Burn(asset, from, amount); err != nil {
		return err
	}
	return m.Mint(asset, to, amount)
}

// Wrap locks amount of the native asset at the wrapper address and mints the
// same amount of the wrapped asset to holder.
func (m *Manager) Wrap(native, wrapped, holder common.Address, amount *big.Int) error {
	if err := m.Transfer(native, holder, wrapped, amount); err != nil {
		return err
	}
	return m.Mint(wrapped, holder, amount)
}

// Unwrap burns amount of the wrapped asset from holder and releases the same
// amount of the native asset held at the wrapper address.
func (m *Manager) Unwrap(native, wrapped, holder common.Address, amount *big.Int) error {
	if err := m.Burn(wrapped, holder, amount); err != nil {
		return err
	}
	return m.Transfer(native, wrapped, holder, amount)
}
