// Package memstore is a backend.Store held in memory and optionally
// persisted to a single snapshot file.
package memstore

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/robert-malhotra/h5tree/internal/alloc"
	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/filter"
)

// firstAddr is the lowest object address; zero never names an object.
const firstAddr = 1

// Store keeps the object graph in maps.
type Store struct {
	mu sync.RWMutex

	alloc   *alloc.Allocator
	root    uint64
	hasRoot bool

	objects map[uint64]backend.Object
	links   map[uint64]map[string]backend.Link
	attrs   map[uint64]map[string]backend.Attribute
	records map[uint64]map[uint64][]byte

	path   string // snapshot file, empty for a purely in-memory store
	dirty  bool
	closed bool
}

var _ backend.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		alloc:   alloc.New(firstAddr),
		objects: make(map[uint64]backend.Object),
		links:   make(map[uint64]map[string]backend.Link),
		attrs:   make(map[uint64]map[string]backend.Attribute),
		records: make(map[uint64]map[uint64][]byte),
	}
}

// Create returns an empty store persisted to path, truncating any existing
// file.
func Create(path string) (*Store, error) {
	s := New()
	s.path = path
	if err := s.SaveFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Open loads the snapshot at path. Changes are written back on Sync.
func Open(path string) (*Store, error) {
	s := New()
	if err := s.LoadFile(path); err != nil {
		return nil, err
	}
	s.path = path
	return s, nil
}

// Path returns the snapshot file, if any.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Root() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Root()
}

func (s *Store) SetRoot(addr uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().SetRoot(addr)
}

func (s *Store) Alloc() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().Alloc()
}

func (s *Store) Object(addr uint64) (backend.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Object(addr)
}

func (s *Store) PutObject(obj backend.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().PutObject(obj)
}

func (s *Store) DeleteObject(addr uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteObject(addr)
}

func (s *Store) Link(parent uint64, name string) (backend.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Link(parent, name)
}

func (s *Store) PutLink(parent uint64, link backend.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().PutLink(parent, link)
}

func (s *Store) DeleteLink(parent uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteLink(parent, name)
}

func (s *Store) Links(parent uint64) ([]backend.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Links(parent)
}

func (s *Store) Attribute(owner uint64, name string) (backend.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Attribute(owner, name)
}

func (s *Store) PutAttribute(owner uint64, attr backend.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().PutAttribute(owner, attr)
}

func (s *Store) DeleteAttribute(owner uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteAttribute(owner, name)
}

func (s *Store) Attributes(owner uint64) ([]backend.Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Attributes(owner)
}

func (s *Store) Record(addr, index uint64) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.direct().Record(addr, index)
}

func (s *Store) PutRecord(addr, index uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().PutRecord(addr, index, data)
}

func (s *Store) DeleteRecords(addr uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direct().DeleteRecords(addr)
}

// Update runs fn with the store locked. Writes land as fn makes them and
// are undone, newest first, when fn fails.
func (s *Store) Update(fn func(tx backend.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &txn{s: s, journal: true}
	next, free, dirty := s.alloc.Next(), s.alloc.FreeList(), s.dirty

	err := fn(t)
	if err == nil {
		return nil
	}
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	s.dirty = dirty
	if rerr := s.alloc.Restore(next, free); rerr != nil {
		return errors.Join(err, fmt.Errorf("memstore: restoring allocator: %w", rerr))
	}
	return err
}

// Sync writes the snapshot file when the store has one and has changed.
func (s *Store) Sync() error {
	s.mu.RLock()
	path, dirty, closed := s.path, s.dirty, s.closed
	s.mu.RUnlock()

	if closed {
		return fmt.Errorf("memstore: store is closed")
	}
	if path == "" || !dirty {
		return nil
	}
	return s.SaveFile(path)
}

// Close syncs and releases the store.
func (s *Store) Close() error {
	if err := s.Sync(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Stats returns the address allocator statistics.
func (s *Store) Stats() alloc.Stats {
	return s.alloc.Stats()
}

func cloneObject(obj backend.Object) backend.Object {
	if obj.Dataset != nil {
		info := *obj.Dataset
		info.Filters = nil
		for _, f := range obj.Dataset.Filters {
			info.Filters = append(info.Filters, filter.Info{ID: f.ID, ClientData: append([]uint32(nil), f.ClientData...)})
		}
		info.Type = info.Type.WithShape(info.Type.Shape...)
		obj.Dataset = &info
	}
	return obj
}

func cloneAttribute(a backend.Attribute) backend.Attribute {
	a.Data = bytes.Clone(a.Data)
	a.Type = a.Type.WithShape(a.Type.Shape...)
	return a
}
