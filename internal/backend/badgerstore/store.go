// Package badgerstore is a backend.Store kept in a Badger database.
//
// Key layout (addresses and indexes are 8-byte big-endian so that keys
// sort numerically, and names sort byte-wise under their prefix):
//
//	m/root                 root group address
//	m/seq                  address sequence
//	o/<addr>               object record (CBOR)
//	l/<addr>/<name>        link record (CBOR)
//	a/<addr>/<name>        attribute record (CBOR)
//	r/<addr><index>        dataset record bytes
package badgerstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/codec"
)

// sequenceBandwidth is how many addresses are leased from the sequence
// at a time.
const sequenceBandwidth = 64

var (
	keyRoot     = []byte("m/root")
	keySequence = []byte("m/seq")
)

// Config configures a Store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string `mapstructure:"dir"`

	// InMemory keeps the whole database in memory.
	InMemory bool `mapstructure:"in_memory"`

	// ReadOnly opens the database without write access.
	ReadOnly bool `mapstructure:"read_only"`

	// SyncWrites makes every write durable before returning.
	SyncWrites bool `mapstructure:"sync_writes"`

	// BlockCacheSizeMB and IndexCacheSizeMB size Badger's caches.
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// Logger receives Badger's own log output.
	Logger logrus.FieldLogger `mapstructure:"-"`
}

// Store keeps the object graph in Badger.
type Store struct {
	db       *badger.DB
	log      logrus.FieldLogger
	inMemory bool
	readOnly bool

	mu  sync.Mutex
	seq *badger.Sequence
}

var _ backend.Store = (*Store)(nil)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("badgerstore: no directory given")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}

	opts = opts.WithLogger(log).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None).
		WithSyncWrites(cfg.SyncWrites).
		WithReadOnly(cfg.ReadOnly)

	if cfg.BlockCacheSizeMB > 0 {
		opts = opts.WithBlockCacheSize(cfg.BlockCacheSizeMB << 20)
	}
	if cfg.IndexCacheSizeMB > 0 {
		opts = opts.WithIndexCacheSize(cfg.IndexCacheSizeMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Dir, err)
	}
	return &Store{db: db, log: log, inMemory: cfg.InMemory, readOnly: cfg.ReadOnly}, nil
}

func addrBytes(addr uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], addr)
	return b[:]
}

func keyObject(addr uint64) []byte {
	return append([]byte("o/"), addrBytes(addr)...)
}

func keyLinkPrefix(parent uint64) []byte {
	return append(append([]byte("l/"), addrBytes(parent)...), '/')
}

func keyLink(parent uint64, name string) []byte {
	return append(keyLinkPrefix(parent), name...)
}

func keyAttrPrefix(owner uint64) []byte {
	return append(append([]byte("a/"), addrBytes(owner)...), '/')
}

func keyAttr(owner uint64, name string) []byte {
	return append(keyAttrPrefix(owner), name...)
}

func keyRecordPrefix(addr uint64) []byte {
	return append([]byte("r/"), addrBytes(addr)...)
}

func keyRecord(addr, index uint64) []byte {
	return append(keyRecordPrefix(addr), addrBytes(index)...)
}

// txn is a backend.Tx bound to one Badger transaction.
type txn struct {
	s  *Store
	tx *badger.Txn
}

var _ backend.Tx = txn{}

func (s *Store) view(fn func(t txn) error) error {
	return s.db.View(func(tx *badger.Txn) error {
		return fn(txn{s: s, tx: tx})
	})
}

func (s *Store) update(fn func(t txn) error) error {
	return s.db.Update(func(tx *badger.Txn) error {
		return fn(txn{s: s, tx: tx})
	})
}

// Update runs fn inside a single Badger read-write transaction. Reads
// through tx see its own pending writes. A transaction larger than
// Badger's batch limit fails with badger.ErrTxnTooBig and writes nothing.
func (s *Store) Update(fn func(tx backend.Tx) error) error {
	return s.update(func(t txn) error { return fn(t) })
}

// get decodes the CBOR value at key into v.
func (t txn) get(key []byte, v any) error {
	item, err := t.tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return backend.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return codec.Unmarshal(val, v)
	})
}

func (t txn) put(key []byte, v any) error {
	val, err := codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	return t.tx.Set(key, val)
}

// remove deletes key, failing with backend.ErrNotFound when it is absent.
func (t txn) remove(key []byte) error {
	if _, err := t.tx.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
		return backend.ErrNotFound
	} else if err != nil {
		return err
	}
	return t.tx.Delete(key)
}

// scan calls fn with every value under prefix in key order.
func (t txn) scan(prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix

	it := t.tx.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// dropPrefix deletes every key under prefix. A read-write transaction
// allows one open iterator, so the keys are collected first.
func (t txn) dropPrefix(prefix []byte) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	var keys [][]byte
	it := t.tx.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := t.tx.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (t txn) Root() (uint64, error) {
	item, err := t.tx.Get(keyRoot)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, backend.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var root uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("invalid root record length: %d", len(val))
		}
		root = binary.BigEndian.Uint64(val)
		return nil
	})
	return root, err
}

func (t txn) SetRoot(addr uint64) error {
	return t.tx.Set(keyRoot, addrBytes(addr))
}

// Alloc leases from the shared sequence. Leases are not rolled back with
// the transaction.
func (t txn) Alloc() (uint64, error) {
	return t.s.Alloc()
}

func (t txn) Object(addr uint64) (backend.Object, error) {
	var obj backend.Object
	err := t.get(keyObject(addr), &obj)
	return obj, err
}

func (t txn) PutObject(obj backend.Object) error {
	return t.put(keyObject(obj.Addr), obj)
}

func (t txn) DeleteObject(addr uint64) error {
	if err := t.remove(keyObject(addr)); err != nil {
		return err
	}
	for _, prefix := range [][]byte{keyLinkPrefix(addr), keyAttrPrefix(addr), keyRecordPrefix(addr)} {
		if err := t.dropPrefix(prefix); err != nil {
			return err
		}
	}
	return nil
}

func (t txn) Link(parent uint64, name string) (backend.Link, error) {
	var l backend.Link
	err := t.get(keyLink(parent, name), &l)
	return l, err
}

func (t txn) PutLink(parent uint64, link backend.Link) error {
	return t.put(keyLink(parent, link.Name), link)
}

func (t txn) DeleteLink(parent uint64, name string) error {
	return t.remove(keyLink(parent, name))
}

func (t txn) Links(parent uint64) ([]backend.Link, error) {
	links := []backend.Link{}
	err := t.scan(keyLinkPrefix(parent), func(val []byte) error {
		var l backend.Link
		if err := codec.Unmarshal(val, &l); err != nil {
			return err
		}
		links = append(links, l)
		return nil
	})
	return links, err
}

func (t txn) Attribute(owner uint64, name string) (backend.Attribute, error) {
	var a backend.Attribute
	err := t.get(keyAttr(owner, name), &a)
	return a, err
}

func (t txn) PutAttribute(owner uint64, attr backend.Attribute) error {
	return t.put(keyAttr(owner, attr.Name), attr)
}

func (t txn) DeleteAttribute(owner uint64, name string) error {
	return t.remove(keyAttr(owner, name))
}

func (t txn) Attributes(owner uint64) ([]backend.Attribute, error) {
	attrs := []backend.Attribute{}
	err := t.scan(keyAttrPrefix(owner), func(val []byte) error {
		var a backend.Attribute
		if err := codec.Unmarshal(val, &a); err != nil {
			return err
		}
		attrs = append(attrs, a)
		return nil
	})
	return attrs, err
}

func (t txn) Record(addr, index uint64) ([]byte, error) {
	item, err := t.tx.Get(keyRecord(addr, index))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, backend.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// PutRecord copies data; Badger holds the value until commit.
func (t txn) PutRecord(addr, index uint64, data []byte) error {
	return t.tx.Set(keyRecord(addr, index), bytes.Clone(data))
}

func (t txn) DeleteRecords(addr uint64) error {
	return t.dropPrefix(keyRecordPrefix(addr))
}

func (s *Store) Root() (root uint64, err error) {
	err = s.view(func(t txn) error {
		root, err = t.Root()
		return err
	})
	return root, err
}

func (s *Store) SetRoot(addr uint64) error {
	return s.update(func(t txn) error { return t.SetRoot(addr) })
}

// Alloc leases the next address from a Badger sequence. Addresses start
// at 1. Freed addresses are not reused.
func (s *Store) Alloc() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == nil {
		seq, err := s.db.GetSequence(keySequence, sequenceBandwidth)
		if err != nil {
			return 0, fmt.Errorf("opening address sequence: %w", err)
		}
		s.seq = seq
	}
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("leasing address: %w", err)
	}
	return n + 1, nil
}

func (s *Store) Object(addr uint64) (obj backend.Object, err error) {
	err = s.view(func(t txn) error {
		obj, err = t.Object(addr)
		return err
	})
	return obj, err
}

func (s *Store) PutObject(obj backend.Object) error {
	return s.update(func(t txn) error { return t.PutObject(obj) })
}

// DeleteObject removes the object with its links, attributes and records.
func (s *Store) DeleteObject(addr uint64) error {
	return s.update(func(t txn) error { return t.DeleteObject(addr) })
}

func (s *Store) Link(parent uint64, name string) (l backend.Link, err error) {
	err = s.view(func(t txn) error {
		l, err = t.Link(parent, name)
		return err
	})
	return l, err
}

func (s *Store) PutLink(parent uint64, link backend.Link) error {
	return s.update(func(t txn) error { return t.PutLink(parent, link) })
}

func (s *Store) DeleteLink(parent uint64, name string) error {
	return s.update(func(t txn) error { return t.DeleteLink(parent, name) })
}

func (s *Store) Links(parent uint64) (links []backend.Link, err error) {
	err = s.view(func(t txn) error {
		links, err = t.Links(parent)
		return err
	})
	return links, err
}

func (s *Store) Attribute(owner uint64, name string) (a backend.Attribute, err error) {
	err = s.view(func(t txn) error {
		a, err = t.Attribute(owner, name)
		return err
	})
	return a, err
}

func (s *Store) PutAttribute(owner uint64, attr backend.Attribute) error {
	return s.update(func(t txn) error { return t.PutAttribute(owner, attr) })
}

func (s *Store) DeleteAttribute(owner uint64, name string) error {
	return s.update(func(t txn) error { return t.DeleteAttribute(owner, name) })
}

func (s *Store) Attributes(owner uint64) (attrs []backend.Attribute, err error) {
	err = s.view(func(t txn) error {
		attrs, err = t.Attributes(owner)
		return err
	})
	return attrs, err
}

func (s *Store) Record(addr, index uint64) (data []byte, err error) {
	err = s.view(func(t txn) error {
		data, err = t.Record(addr, index)
		return err
	})
	return data, err
}

func (s *Store) PutRecord(addr, index uint64, data []byte) error {
	return s.update(func(t txn) error { return t.PutRecord(addr, index, data) })
}

func (s *Store) DeleteRecords(addr uint64) error {
	return s.update(func(t txn) error { return t.DeleteRecords(addr) })
}

// Sync flushes Badger's write-ahead log. An in-memory database has none.
func (s *Store) Sync() error {
	if s.db.IsClosed() {
		return fmt.Errorf("badgerstore: database is closed")
	}
	if s.inMemory || s.readOnly {
		return nil
	}
	return s.db.Sync()
}

// Close releases the address sequence and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db.IsClosed() {
		return nil
	}
	var seqErr error
	if s.seq != nil {
		seqErr = s.seq.Release()
		s.seq = nil
	}
	return errors.Join(seqErr, s.db.Close())
}
