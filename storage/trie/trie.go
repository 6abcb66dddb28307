package trie

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"lendcore/storage"
)

// Trie wraps go-ethereum's Merkle Patricia trie with the commit/revert cycle
// the ledger relies on. Mutations stay in memory until Commit; Revert drops
// them and reloads the last committed root.
//
// Keys are expected to be keccak256 hashes.
//
// Trie is not safe for concurrent use.
type Trie struct {
	store   storage.Database
	trieDB  *triedb.Database
	trie    *gethtrie.Trie
	root    common.Hash
	version uint64
}

// NewTrie opens a trie at root. A nil or empty root denotes the empty trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	trieDB := store.TrieDB()
	rootHash := gethtypes.EmptyRootHash
	if len(root) > 0 {
		rootHash = common.BytesToHash(root)
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(rootHash), trieDB)
	if err != nil {
		return nil, err
	}
	return &Trie{
		store:  store,
		trieDB: trieDB,
		trie:   underlying,
		root:   rootHash,
	}, nil
}

func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	return t.trie.Update(key, value)
}

func (t *Trie) Delete(key []byte) error {
	return t.trie.Delete(key)
}

// Hash returns the root hash including uncommitted mutations.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root returns the last committed root hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Dirty reports whether uncommitted mutations exist.
func (t *Trie) Dirty() bool {
	return t.trie.Hash() != t.root
}

// Reset reloads the trie at root, discarding in-memory changes.
func (t *Trie) Reset(root common.Hash) error {
	underlying, err := gethtrie.New(gethtrie.TrieID(root), t.trieDB)
	if err != nil {
		return err
	}
	t.trie = underlying
	t.root = root
	return nil
}

// Revert discards everything written since the last Commit.
func (t *Trie) Revert() error {
	return t.Reset(t.root)
}

// Commit flushes pending nodes to the backing store and returns the new root.
// The wrapper reopens itself at that root so it can keep accepting writes.
func (t *Trie) Commit() (common.Hash, error) {
	parent := t.root
	newRoot, nodes := t.trie.Commit(false)
	if nodes != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Update(newRoot, parent, t.version+1, merged, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Commit(newRoot, false); err != nil {
			return common.Hash{}, err
		}
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(newRoot), t.trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	t.trie = underlying
	t.root = newRoot
	t.version++
	return newRoot, nil
}

// Version counts successful commits since the trie was opened.
func (t *Trie) Version() uint64 {
	return t.version
}

func (t *Trie) Store() storage.Database {
	return t.store
}
