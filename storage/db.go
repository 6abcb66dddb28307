package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// Database is the key-value store backing the ledger state. Every backend also
// hands out a trie database sharing the same disk so state roots survive
// restarts of persistent stores.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Close()
	TrieDB() *triedb.Database
}

// --- In-memory ---

// MemDB keeps everything in process memory. Used by tests and by bankd when no
// data directory is configured.
type MemDB struct {
	kv     *memorydb.Database
	trieDB *triedb.Database
	once   sync.Once
}

func NewMemDB() *MemDB {
	kv := memorydb.New()
	return &MemDB{
		kv:     kv,
		trieDB: triedb.NewDatabase(rawdb.NewDatabase(kv), triedb.HashDefaults),
	}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	return db.kv.Put(key, value)
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	if ok, err := db.kv.Has(key); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}
	return db.kv.Get(key)
}

func (db *MemDB) TrieDB() *triedb.Database { return db.trieDB }

func (db *MemDB) Close() {
	db.once.Do(func() {
		_ = db.trieDB.Close()
		_ = db.kv.Close()
	})
}

// --- Persistent ---

// LevelDB is a persistent store on top of go-ethereum's LevelDB wrapper.
type LevelDB struct {
	kv     *gethleveldb.Database
	disk   ethdb.Database
	trieDB *triedb.Database
	once   sync.Once
}

const (
	levelDBCache   = 16
	levelDBHandles = 16
)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	kv, err := gethleveldb.New(path, levelDBCache, levelDBHandles, "lendcore/db/", false)
	if err != nil {
		return nil, err
	}
	disk := rawdb.NewDatabase(kv)
	return &LevelDB{
		kv:     kv,
		disk:   disk,
		trieDB: triedb.NewDatabase(disk, triedb.HashDefaults),
	}, nil
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.kv.Put(key, value)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.kv.Get(key)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (ldb *LevelDB) TrieDB() *triedb.Database { return ldb.trieDB }

// Close flushes the trie database and closes the underlying files.
func (ldb *LevelDB) Close() {
	ldb.once.Do(func() {
		_ = ldb.trieDB.Close()
		_ = ldb.disk.Close()
	})
}
