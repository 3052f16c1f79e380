package memstore

import (
	"bytes"
	"sort"

	"github.com/robert-malhotra/h5tree/internal/backend"
)

// txn works on the maps of s directly. The caller holds s.mu. With journal
// set, every write records how to reverse itself.
type txn struct {
	s       *Store
	journal bool
	undo    []func()
}

var _ backend.Tx = (*txn)(nil)

// direct returns a txn whose writes are final.
func (s *Store) direct() *txn {
	return &txn{s: s}
}

func (t *txn) record(fn func()) {
	if t.journal {
		t.undo = append(t.undo, fn)
	}
}

func (t *txn) Root() (uint64, error) {
	if !t.s.hasRoot {
		return 0, backend.ErrNotFound
	}
	return t.s.root, nil
}

func (t *txn) SetRoot(addr uint64) error {
	s := t.s
	root, hasRoot := s.root, s.hasRoot
	t.record(func() { s.root, s.hasRoot = root, hasRoot })
	s.root = addr
	s.hasRoot = true
	s.dirty = true
	return nil
}

// Alloc needs no journal entry: Store.Update restores the allocator as a
// whole.
func (t *txn) Alloc() (uint64, error) {
	t.s.dirty = true
	return t.s.alloc.Alloc(), nil
}

func (t *txn) Object(addr uint64) (backend.Object, error) {
	obj, ok := t.s.objects[addr]
	if !ok {
		return backend.Object{}, backend.ErrNotFound
	}
	return cloneObject(obj), nil
}

func (t *txn) PutObject(obj backend.Object) error {
	s := t.s
	prev, existed := s.objects[obj.Addr]
	t.record(func() {
		if existed {
			s.objects[obj.Addr] = prev
		} else {
			delete(s.objects, obj.Addr)
		}
	})
	s.objects[obj.Addr] = cloneObject(obj)
	s.dirty = true
	return nil
}

func (t *txn) DeleteObject(addr uint64) error {
	s := t.s
	obj, ok := s.objects[addr]
	if !ok {
		return backend.ErrNotFound
	}
	links, attrs, records := s.links[addr], s.attrs[addr], s.records[addr]
	t.record(func() {
		s.objects[addr] = obj
		restore(s.links, addr, links)
		restore(s.attrs, addr, attrs)
		restore(s.records, addr, records)
	})
	delete(s.objects, addr)
	delete(s.links, addr)
	delete(s.attrs, addr)
	delete(s.records, addr)
	s.dirty = true
	return s.alloc.Free(addr)
}

func (t *txn) Link(parent uint64, name string) (backend.Link, error) {
	l, ok := t.s.links[parent][name]
	if !ok {
		return backend.Link{}, backend.ErrNotFound
	}
	return l, nil
}

func (t *txn) PutLink(parent uint64, link backend.Link) error {
	m := inner(t.s.links, parent)
	journalEntry(t, m, link.Name)
	m[link.Name] = link
	t.s.dirty = true
	return nil
}

func (t *txn) DeleteLink(parent uint64, name string) error {
	m := t.s.links[parent]
	if _, ok := m[name]; !ok {
		return backend.ErrNotFound
	}
	journalEntry(t, m, name)
	delete(m, name)
	t.s.dirty = true
	return nil
}

func (t *txn) Links(parent uint64) ([]backend.Link, error) {
	out := make([]backend.Link, 0, len(t.s.links[parent]))
	for _, l := range t.s.links[parent] {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *txn) Attribute(owner uint64, name string) (backend.Attribute, error) {
	a, ok := t.s.attrs[owner][name]
	if !ok {
		return backend.Attribute{}, backend.ErrNotFound
	}
	return cloneAttribute(a), nil
}

func (t *txn) PutAttribute(owner uint64, attr backend.Attribute) error {
	m := inner(t.s.attrs, owner)
	journalEntry(t, m, attr.Name)
	m[attr.Name] = cloneAttribute(attr)
	t.s.dirty = true
	return nil
}

func (t *txn) DeleteAttribute(owner uint64, name string) error {
	m := t.s.attrs[owner]
	if _, ok := m[name]; !ok {
		return backend.ErrNotFound
	}
	journalEntry(t, m, name)
	delete(m, name)
	t.s.dirty = true
	return nil
}

func (t *txn) Attributes(owner uint64) ([]backend.Attribute, error) {
	out := make([]backend.Attribute, 0, len(t.s.attrs[owner]))
	for _, a := range t.s.attrs[owner] {
		out = append(out, cloneAttribute(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *txn) Record(addr, index uint64) ([]byte, error) {
	data, ok := t.s.records[addr][index]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return bytes.Clone(data), nil
}

func (t *txn) PutRecord(addr, index uint64, data []byte) error {
	m := inner(t.s.records, addr)
	journalEntry(t, m, index)
	m[index] = bytes.Clone(data)
	t.s.dirty = true
	return nil
}

func (t *txn) DeleteRecords(addr uint64) error {
	s := t.s
	if prev, ok := s.records[addr]; ok {
		t.record(func() { s.records[addr] = prev })
	}
	delete(s.records, addr)
	s.dirty = true
	return nil
}

// journalEntry journals the current state of m[key].
func journalEntry[K comparable, V any](t *txn, m map[K]V, key K) {
	prev, existed := m[key]
	t.record(func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	})
}

// inner returns outer[addr], creating it when missing.
func inner[K comparable, V any](outer map[uint64]map[K]V, addr uint64) map[K]V {
	m := outer[addr]
	if m == nil {
		m = make(map[K]V)
		outer[addr] = m
	}
	return m
}

// restore puts back the very map DeleteObject removed, so older journal
// entries that captured it still apply.
func restore[K comparable, V any](outer map[uint64]map[K]V, addr uint64, m map[K]V) {
	if m != nil {
		outer[addr] = m
	} else {
		delete(outer, addr)
	}
}
