// Package storetest holds the behaviour every backend.Store must share.
// Store packages call Run from their own tests.
package storetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/dtype"
	"github.com/robert-malhotra/h5tree/internal/filter"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) backend.Store

// Run exercises a Store implementation.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyRoot", func(t *testing.T) { testEmptyRoot(t, newStore(t)) })
	t.Run("Objects", func(t *testing.T) { testObjects(t, newStore(t)) })
	t.Run("Links", func(t *testing.T) { testLinks(t, newStore(t)) })
	t.Run("Attributes", func(t *testing.T) { testAttributes(t, newStore(t)) })
	t.Run("Records", func(t *testing.T) { testRecords(t, newStore(t)) })
	t.Run("DistinctAddresses", func(t *testing.T) { testDistinctAddresses(t, newStore(t)) })
	t.Run("UpdateCommits", func(t *testing.T) { testUpdateCommits(t, newStore(t)) })
	t.Run("UpdateRollsBack", func(t *testing.T) { testUpdateRollsBack(t, newStore(t)) })
}

func testEmptyRoot(t *testing.T, s backend.Store) {
	defer s.Close()

	_, err := s.Root()
	require.ErrorIs(t, err, backend.ErrNotFound)

	addr, err := s.Alloc()
	require.NoError(t, err)
	require.NoError(t, s.SetRoot(addr))

	got, err := s.Root()
	require.NoError(t, err)
	assert.Equal(t, addr, got)
}

func testObjects(t *testing.T, s backend.Store) {
	defer s.Close()

	addr, err := s.Alloc()
	require.NoError(t, err)

	_, err = s.Object(addr)
	require.ErrorIs(t, err, backend.ErrNotFound)

	obj := backend.Object{
		Addr:     addr,
		Type:     backend.ObjectDataset,
		RefCount: 1,
		Dataset: &backend.DatasetInfo{
			Type:    dtype.Float64.WithShape(2, 3),
			List:    true,
			Filters: []filter.Info{{ID: filter.FilterDeflate, ClientData: []uint32{4}}},
			Records: 2,
		},
	}
	require.NoError(t, s.PutObject(obj))

	got, err := s.Object(addr)
	require.NoError(t, err)
	assert.Equal(t, obj, got)

	// The store must not alias caller memory.
	got.Dataset.Records = 99
	again, err := s.Object(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), again.Dataset.Records)

	require.NoError(t, s.DeleteObject(addr))
	_, err = s.Object(addr)
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func testLinks(t *testing.T, s backend.Store) {
	defer s.Close()

	parent, err := s.Alloc()
	require.NoError(t, err)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.PutLink(parent, backend.Link{Name: name, Type: backend.LinkHard, Addr: 7}))
	}
	require.NoError(t, s.PutLink(parent, backend.Link{Name: "soft", Type: backend.LinkSoft, Target: "/alpha"}))

	links, err := s.Links(parent)
	require.NoError(t, err)
	var names []string
	for _, l := range links {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "soft", "zeta"}, names)

	l, err := s.Link(parent, "soft")
	require.NoError(t, err)
	assert.Equal(t, backend.LinkSoft, l.Type)
	assert.Equal(t, "/alpha", l.Target)

	require.NoError(t, s.DeleteLink(parent, "mid"))
	_, err = s.Link(parent, "mid")
	require.ErrorIs(t, err, backend.ErrNotFound)
	require.ErrorIs(t, s.DeleteLink(parent, "mid"), backend.ErrNotFound)

	empty, err := s.Links(parent + 1000)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAttributes(t *testing.T, s backend.Store) {
	defer s.Close()

	owner, err := s.Alloc()
	require.NoError(t, err)

	attr := backend.Attribute{Name: "units", Type: dtype.String(6), Data: []byte("meters")}
	require.NoError(t, s.PutAttribute(owner, attr))
	require.NoError(t, s.PutAttribute(owner, backend.Attribute{Name: "scale", Type: dtype.Float32, Data: make([]byte, 4)}))

	got, err := s.Attribute(owner, "units")
	require.NoError(t, err)
	assert.Equal(t, attr, got)

	all, err := s.Attributes(owner)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "scale", all[0].Name)
	assert.Equal(t, "units", all[1].Name)

	require.NoError(t, s.DeleteAttribute(owner, "units"))
	_, err = s.Attribute(owner, "units")
	require.ErrorIs(t, err, backend.ErrNotFound)
	require.ErrorIs(t, s.DeleteAttribute(owner, "units"), backend.ErrNotFound)
}

func testRecords(t *testing.T, s backend.Store) {
	defer s.Close()

	addr, err := s.Alloc()
	require.NoError(t, err)

	require.NoError(t, s.PutRecord(addr, 0, []byte{1, 2, 3}))
	require.NoError(t, s.PutRecord(addr, 1, []byte{4, 5}))

	data, err := s.Record(addr, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, data)

	require.NoError(t, s.DeleteRecords(addr))
	_, err = s.Record(addr, 0)
	require.ErrorIs(t, err, backend.ErrNotFound)
}

func testDistinctAddresses(t *testing.T, s backend.Store) {
	defer s.Close()

	seen := map[uint64]bool{}
	for i := 0; i < 50; i++ {
		addr, err := s.Alloc()
		require.NoError(t, err)
		assert.False(t, seen[addr], "address %d handed out twice", addr)
		assert.NotZero(t, addr)
		seen[addr] = true
	}
}

func testUpdateCommits(t *testing.T, s backend.Store) {
	defer s.Close()

	var addr uint64
	err := s.Update(func(tx backend.Tx) error {
		var err error
		if addr, err = tx.Alloc(); err != nil {
			return err
		}
		if err := tx.PutObject(backend.Object{Addr: addr, Type: backend.ObjectGroup, RefCount: 1}); err != nil {
			return err
		}
		if err := tx.PutLink(addr, backend.Link{Name: "b", Type: backend.LinkSoft, Target: "/x"}); err != nil {
			return err
		}
		if err := tx.PutLink(addr, backend.Link{Name: "a", Type: backend.LinkSoft, Target: "/y"}); err != nil {
			return err
		}

		// Reads inside the transaction see its own writes.
		links, err := tx.Links(addr)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "a", links[0].Name)
		return tx.SetRoot(addr)
	})
	require.NoError(t, err)

	root, err := s.Root()
	require.NoError(t, err)
	assert.Equal(t, addr, root)
	links, err := s.Links(addr)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func testUpdateRollsBack(t *testing.T, s backend.Store) {
	defer s.Close()

	keep, err := s.Alloc()
	require.NoError(t, err)
	obj := backend.Object{Addr: keep, Type: backend.ObjectDataset, RefCount: 1, Dataset: &backend.DatasetInfo{Type: dtype.Uint8, Records: 1}}
	require.NoError(t, s.PutObject(obj))
	require.NoError(t, s.SetRoot(keep))
	require.NoError(t, s.PutLink(keep, backend.Link{Name: "l", Type: backend.LinkSoft, Target: "/t"}))
	attr := backend.Attribute{Name: "n", Type: dtype.Uint8, Data: []byte{1}}
	require.NoError(t, s.PutAttribute(keep, attr))
	require.NoError(t, s.PutRecord(keep, 0, []byte{5}))

	failed := errors.New("stop")
	var fresh uint64
	err = s.Update(func(tx backend.Tx) error {
		var err error
		if fresh, err = tx.Alloc(); err != nil {
			return err
		}
		require.NoError(t, tx.PutObject(backend.Object{Addr: fresh, Type: backend.ObjectGroup, RefCount: 1}))
		require.NoError(t, tx.SetRoot(fresh))
		require.NoError(t, tx.PutLink(keep, backend.Link{Name: "l", Type: backend.LinkHard, Addr: fresh}))
		require.NoError(t, tx.PutAttribute(keep, backend.Attribute{Name: "m", Type: dtype.Uint8, Data: []byte{2}}))
		require.NoError(t, tx.PutRecord(keep, 0, []byte{6}))
		require.NoError(t, tx.PutRecord(keep, 1, []byte{7}))
		require.NoError(t, tx.DeleteObject(keep))

		_, err = tx.Object(keep)
		require.ErrorIs(t, err, backend.ErrNotFound)
		return failed
	})
	require.ErrorIs(t, err, failed)

	root, err := s.Root()
	require.NoError(t, err)
	assert.Equal(t, keep, root)

	got, err := s.Object(keep)
	require.NoError(t, err)
	assert.Equal(t, backend.ObjectDataset, got.Type)
	require.NotNil(t, got.Dataset)
	assert.Equal(t, uint64(1), got.Dataset.Records)
	_, err = s.Object(fresh)
	assert.ErrorIs(t, err, backend.ErrNotFound)

	l, err := s.Link(keep, "l")
	require.NoError(t, err)
	assert.Equal(t, backend.LinkSoft, l.Type)
	attrs, err := s.Attributes(keep)
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, attr, attrs[0])

	data, err := s.Record(keep, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, data)
	_, err = s.Record(keep, 1)
	assert.ErrorIs(t, err, backend.ErrNotFound)
}
