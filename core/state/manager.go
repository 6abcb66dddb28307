package state

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"lendcore/storage/trie"
)

// Manager reads and writes ledger records on top of a state trie. All writes
// stay pending until Commit; Revert throws them away.
//
// Manager is not safe for concurrent use.
type Manager struct {
	trie *trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var (
	balancePrefix   = []byte("balance:")
	bankPrefix      = []byte("bank:")
	wrappedPrefix   = []byte("bank-wrapped:")
	positionPrefix  = []byte("position:")
	bankListKey     = ethcrypto.Keccak256([]byte("bank-list"))
	nextPositionKey = ethcrypto.Keccak256([]byte("position-next"))
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p) + 1
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

func balanceKey(asset, holder common.Address) []byte {
	return prefixedKey(balancePrefix, asset.Bytes(), holder.Bytes())
}

func bankKey(underlying common.Address) []byte {
	return prefixedKey(bankPrefix, underlying.Bytes())
}

func wrappedKey(wrapped common.Address) []byte {
	return prefixedKey(wrappedPrefix, wrapped.Bytes())
}

func positionKey(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return prefixedKey(positionPrefix, buf[:])
}

// put RLP-encodes value and stores it under the hashed key.
func (m *Manager) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(key, encoded)
}

// get decodes the value stored under key into out and reports whether it
// existed.
func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	data, err := m.trie.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

// Hash returns the state root including pending writes.
func (m *Manager) Hash() common.Hash { return m.trie.Hash() }

// Root returns the last committed state root.
func (m *Manager) Root() common.Hash { return m.trie.Root() }

// Commit persists pending writes and returns the new root.
func (m *Manager) Commit() (common.Hash, error) { return m.trie.Commit() }

// Revert drops pending writes.
func (m *Manager) Revert() error { return m.trie.Revert() }
