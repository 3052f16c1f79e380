package backend_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/backend/memstore"
	"github.com/robert-malhotra/h5tree/internal/dtype"
	"github.com/robert-malhotra/h5tree/internal/filter"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

func newEngine(t *testing.T) *backend.Engine {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	e, err := backend.NewEngine(memstore.New(), backend.WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func mustGroup(t *testing.T, e *backend.Engine, loc handle.ID, name string) handle.ID {
	t.Helper()
	id := e.CreateGroup(loc, name)
	require.NoError(t, backend.CheckID("create group", id))
	return id
}

func linkNames(t *testing.T, e *backend.Engine, loc handle.ID) []string {
	t.Helper()
	var names []string
	st := e.IterateLinks(loc, func(name string, _ backend.LinkInfo) backend.Status {
		names = append(names, name)
		return backend.StatusOK
	})
	require.Equal(t, backend.StatusOK, st)
	return names
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, backend.Check("op", backend.StatusOK))
	err := backend.Check("open group", backend.StatusNotFound)
	require.Error(t, err)
	assert.Equal(t, "open group failed with status -2 (not found)", err.Error())
	assert.True(t, backend.IsStatus(err, backend.StatusNotFound))
	assert.ErrorIs(t, err, &backend.StatusError{Status: backend.StatusNotFound})
	assert.NotErrorIs(t, err, &backend.StatusError{Status: backend.StatusExists})

	err = backend.CheckID("create group", handle.ID(backend.StatusExists))
	assert.True(t, backend.IsStatus(err, backend.StatusExists))
	assert.NoError(t, backend.CheckID("x", 3))
}

func TestCreateOpenGroups(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()

	a := mustGroup(t, e, file, "a")
	mustGroup(t, e, a, "b")
	mustGroup(t, e, file, "/a/c")

	id := e.OpenGroup(file, "a/b")
	require.True(t, id.Valid())
	assert.Equal(t, backend.StatusOK, e.CloseGroup(id))

	root := e.OpenGroup(file, "/")
	require.True(t, root.Valid())
	assert.Equal(t, []string{"a"}, linkNames(t, e, root))
	assert.Equal(t, []string{"b", "c"}, linkNames(t, e, a))

	assert.Equal(t, handle.ID(backend.StatusExists), e.CreateGroup(file, "a"))
	assert.Equal(t, handle.ID(backend.StatusNotFound), e.CreateGroup(file, "x/y"))
	assert.Equal(t, handle.ID(backend.StatusNotFound), e.OpenGroup(file, "missing"))
	assert.Equal(t, handle.ID(backend.StatusBadName), e.OpenGroup(a, "../a"))
	assert.Equal(t, handle.ID(backend.StatusBadName), e.CreateGroup(file, "/"))
}

func TestCloseHandleTwice(t *testing.T) {
	e := newEngine(t)
	id := mustGroup(t, e, e.FileID(), "g")
	assert.Equal(t, backend.StatusOK, e.CloseGroup(id))
	assert.Equal(t, backend.StatusBadHandle, e.CloseGroup(id))
	assert.Equal(t, backend.StatusWrongKind, e.CloseDataset(e.FileID()))
}

func TestDeleteLinkRecursive(t *testing.T) {
	store := memstore.New()
	e, err := backend.NewEngine(store)
	require.NoError(t, err)
	defer e.Close()
	file := e.FileID()

	g := mustGroup(t, e, file, "images")
	ds := e.CreateDataset(g, "frame0", backend.DatasetInfo{Type: dtype.Float32})
	require.True(t, ds.Valid())
	require.Equal(t, backend.StatusOK, e.WriteRecord(ds, 0, make([]byte, 4)))
	require.True(t, e.CreateAttribute(g, "note", dtype.Uint8).Valid())

	before := store.Stats().Live
	require.Equal(t, backend.StatusOK, e.DeleteLink(file, "images"))
	assert.Equal(t, before-2, store.Stats().Live, "group and dataset must both be freed")

	assert.Equal(t, handle.ID(backend.StatusNotFound), e.OpenGroup(file, "images"))
	_, st := e.DatasetInfo(ds)
	assert.Equal(t, backend.StatusNotFound, st, "handles to destroyed objects go stale")
	assert.Equal(t, backend.StatusOK, e.CloseDataset(ds), "stale handles still close")
	assert.Equal(t, backend.StatusOK, e.CloseGroup(g))

	assert.Equal(t, backend.StatusNotFound, e.DeleteLink(file, "images"))
}

func TestMoveLink(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()

	a := mustGroup(t, e, file, "a")
	ds := e.CreateDataset(a, "d", backend.DatasetInfo{Type: dtype.Int32})
	require.True(t, ds.Valid())

	assert.Equal(t, backend.StatusOK, e.MoveLink(a, "d", a, "e", true))
	assert.Equal(t, []string{"e"}, linkNames(t, e, a))

	// Open handles follow the object, not the name.
	_, st := e.DatasetInfo(ds)
	assert.Equal(t, backend.StatusOK, st)

	assert.Equal(t, backend.StatusNotFound, e.MoveLink(a, "e", a, "x/y/e", false))
	assert.Equal(t, backend.StatusOK, e.MoveLink(a, "e", a, "x/y/e", true))
	info, st := e.ObjectInfo(a, "x/y/e")
	require.Equal(t, backend.StatusOK, st)
	assert.Equal(t, backend.ObjectDataset, info.Type)

	mustGroup(t, e, file, "b")
	assert.Equal(t, backend.StatusExists, e.MoveLink(file, "a", file, "b", true))
	assert.Equal(t, backend.StatusBadArgument, e.MoveLink(file, "a", file, "a/x/inside", true))
	assert.Equal(t, backend.StatusBadArgument, e.MoveLink(file, "a", file, "a/new/inside", true))
	assert.Equal(t, handle.ID(backend.StatusNotFound), e.OpenGroup(file, "a/new"),
		"a rejected move must not create intermediate groups")

	assert.Equal(t, backend.StatusOK, e.MoveLink(file, "a", file, "a", true))
}

func TestCopyObject(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()

	src := mustGroup(t, e, file, "src")
	sub := mustGroup(t, e, src, "sub")
	ds := e.CreateDataset(sub, "values", backend.DatasetInfo{
		Type:    dtype.Int16.WithShape(2),
		List:    true,
		Filters: []filter.Info{{ID: filter.FilterDeflate, ClientData: []uint32{3}}},
	})
	require.True(t, ds.Valid())
	require.Equal(t, backend.StatusOK, e.WriteRecord(ds, 0, []byte{1, 0, 2, 0}))
	require.Equal(t, backend.StatusOK, e.WriteRecord(ds, 1, []byte{3, 0, 4, 0}))
	require.Equal(t, backend.StatusOK, e.CreateSoftLink(src, "alias", "sub/values"))
	attr := e.CreateAttribute(sub, "units", dtype.String(2))
	require.Equal(t, backend.StatusOK, e.WriteAttribute(attr, dtype.String(2), []byte("mm")))

	require.Equal(t, backend.StatusOK, e.CopyObject(file, "src", file, "dst"))
	assert.Equal(t, backend.StatusExists, e.CopyObject(file, "src", file, "dst"))
	assert.Equal(t, backend.StatusNotFound, e.CopyObject(file, "src", file, "nope/dst"))

	copied := e.OpenDataset(file, "dst/sub/values")
	require.True(t, copied.Valid())
	info, st := e.DatasetInfo(copied)
	require.Equal(t, backend.StatusOK, st)
	assert.Equal(t, uint64(2), info.Records)
	assert.Equal(t, 3, info.Compression())

	raw, st := e.ReadRecord(copied, 1)
	require.Equal(t, backend.StatusOK, st)
	assert.Equal(t, []byte{3, 0, 4, 0}, raw)

	// The soft link is copied verbatim and resolves inside the copy.
	alias := e.OpenDataset(file, "dst/alias")
	require.True(t, alias.Valid())
	aliasInfo, _ := e.ObjectInfo(file, "dst/alias")
	copiedInfo, _ := e.ObjectInfo(file, "dst/sub/values")
	assert.Equal(t, copiedInfo.Addr, aliasInfo.Addr)

	dstSub := e.OpenGroup(file, "dst/sub")
	ok, st := e.AttributeExists(dstSub, "units")
	require.Equal(t, backend.StatusOK, st)
	assert.True(t, ok)

	// Changing the copy leaves the source alone.
	require.Equal(t, backend.StatusOK, e.WriteRecord(copied, 0, []byte{9, 9, 9, 9}))
	raw, _ = e.ReadRecord(ds, 0)
	assert.Equal(t, []byte{1, 0, 2, 0}, raw)
}

func TestSoftLinks(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()
	mustGroup(t, e, file, "real")

	require.Equal(t, backend.StatusOK, e.CreateSoftLink(file, "link", "/real"))
	require.Equal(t, backend.StatusOK, e.CreateSoftLink(file, "dangling", "/nowhere"))
	require.Equal(t, backend.StatusOK, e.CreateSoftLink(file, "loop1", "loop2"))
	require.Equal(t, backend.StatusOK, e.CreateSoftLink(file, "loop2", "loop1"))

	var soft []string
	e.IterateLinks(file, func(name string, info backend.LinkInfo) backend.Status {
		if info.Type == backend.LinkSoft {
			soft = append(soft, name+"->"+info.Target)
		}
		return backend.StatusOK
	})
	assert.Equal(t, []string{"dangling->/nowhere", "link->/real", "loop1->loop2", "loop2->loop1"}, soft)

	assert.True(t, e.OpenGroup(file, "link").Valid())
	assert.Equal(t, handle.ID(backend.StatusNotFound), e.OpenGroup(file, "dangling"))
	assert.Equal(t, handle.ID(backend.StatusFail), e.OpenGroup(file, "loop1"))

	// Deleting a soft link never touches its target.
	require.Equal(t, backend.StatusOK, e.DeleteLink(file, "link"))
	assert.True(t, e.OpenGroup(file, "real").Valid())
}

func TestIterateStops(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()
	for _, n := range []string{"c", "a", "b"} {
		mustGroup(t, e, file, n)
	}

	var seen []string
	st := e.IterateLinks(file, func(name string, _ backend.LinkInfo) backend.Status {
		seen = append(seen, name)
		if name == "b" {
			return 1
		}
		return backend.StatusOK
	})
	assert.Equal(t, backend.Status(1), st)
	assert.Equal(t, []string{"a", "b"}, seen)

	st = e.IterateLinks(file, func(string, backend.LinkInfo) backend.Status { return backend.StatusFail })
	assert.Equal(t, backend.StatusFail, st)
}

func TestIterateCallbackMayReenter(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()
	mustGroup(t, e, file, "g")

	st := e.IterateLinks(file, func(name string, _ backend.LinkInfo) backend.Status {
		info, st := e.ObjectInfo(file, name)
		if !st.OK() {
			return st
		}
		assert.Equal(t, backend.ObjectGroup, info.Type)
		return backend.StatusOK
	})
	assert.Equal(t, backend.StatusOK, st)
}

func TestRecords(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()

	scalar := e.CreateDataset(file, "scalar", backend.DatasetInfo{Type: dtype.Float64})
	require.True(t, scalar.Valid())
	_, st := e.ReadRecord(scalar, 0)
	assert.Equal(t, backend.StatusNotFound, st)
	assert.Equal(t, backend.StatusBadArgument, e.WriteRecord(scalar, 0, []byte{1}))
	assert.Equal(t, backend.StatusOK, e.WriteRecord(scalar, 0, make([]byte, 8)))
	assert.Equal(t, backend.StatusOK, e.WriteRecord(scalar, 0, make([]byte, 8)))
	assert.Equal(t, backend.StatusBadArgument, e.WriteRecord(scalar, 1, make([]byte, 8)))

	list := e.CreateDataset(file, "list", backend.DatasetInfo{
		Type: dtype.Uint32,
		List: true,
		Filters: []filter.Info{
			{ID: filter.FilterShuffle, ClientData: []uint32{4}},
			{ID: filter.FilterDeflate, ClientData: []uint32{9}},
			{ID: filter.FilterFletcher32},
		},
	})
	require.True(t, list.Valid())
	for i := uint64(0); i < 3; i++ {
		require.Equal(t, backend.StatusOK, e.WriteRecord(list, i, []byte{byte(i), 0, 0, 0}))
	}
	assert.Equal(t, backend.StatusBadArgument, e.WriteRecord(list, 5, make([]byte, 4)))

	info, st := e.DatasetInfo(list)
	require.Equal(t, backend.StatusOK, st)
	assert.Equal(t, uint64(3), info.Records)
	assert.True(t, info.List)

	raw, st := e.ReadRecord(list, 2)
	require.Equal(t, backend.StatusOK, st)
	assert.Equal(t, []byte{2, 0, 0, 0}, raw)

	assert.Equal(t, handle.ID(backend.StatusBadArgument),
		e.CreateDataset(file, "bad", backend.DatasetInfo{Type: dtype.Type{}}))
	assert.Equal(t, handle.ID(backend.StatusBadArgument),
		e.CreateDataset(file, "bad", backend.DatasetInfo{Type: dtype.Int8, Filters: []filter.Info{{ID: 999}}}))
	assert.Equal(t, handle.ID(backend.StatusWrongKind), e.OpenDataset(file, "/"))
}

func TestAttributes(t *testing.T) {
	e := newEngine(t)
	file := e.FileID()
	g := mustGroup(t, e, file, "g")

	ok, st := e.AttributeExists(g, "x")
	require.Equal(t, backend.StatusOK, st)
	assert.False(t, ok)

	typ := dtype.Int32.WithShape(2)
	attr := e.CreateAttribute(g, "x", typ)
	require.True(t, attr.Valid())
	assert.Equal(t, handle.ID(backend.StatusExists), e.CreateAttribute(g, "x", typ))
	assert.Equal(t, handle.ID(backend.StatusBadName), e.CreateAttribute(g, "", typ))

	buf := []byte{1, 0, 0, 0, 2, 0, 0, 0}
	require.Equal(t, backend.StatusOK, e.WriteAttribute(attr, typ, buf))
	assert.Equal(t, backend.StatusOK, e.CloseAttribute(attr))

	attr = e.OpenAttribute(g, "x")
	require.True(t, attr.Valid())
	got, st := e.AttributeType(attr)
	require.Equal(t, backend.StatusOK, st)
	assert.True(t, got.Equal(typ))

	out := make([]byte, 8)
	require.Equal(t, backend.StatusOK, e.ReadAttribute(attr, typ, out))
	assert.Equal(t, buf, out)
	assert.Equal(t, backend.StatusWrongKind, e.ReadAttribute(attr, dtype.Int64, out))
	assert.Equal(t, backend.StatusBadArgument, e.ReadAttribute(attr, typ, out[:4]))

	names, st := e.AttributeNames(g)
	require.Equal(t, backend.StatusOK, st)
	assert.Equal(t, []string{"x"}, names)

	require.Equal(t, backend.StatusOK, e.DeleteAttribute(g, "x"))
	assert.Equal(t, backend.StatusNotFound, e.DeleteAttribute(g, "x"))
	_, st = e.AttributeType(attr)
	assert.Equal(t, backend.StatusNotFound, st)
	assert.Equal(t, handle.ID(backend.StatusNotFound), e.OpenAttribute(g, "x"))

	ds := e.CreateDataset(g, "d", backend.DatasetInfo{Type: dtype.Int8})
	onDataset := e.CreateAttribute(ds, "on-dataset", dtype.Bool)
	require.True(t, onDataset.Valid())
	assert.Equal(t, handle.ID(backend.StatusWrongKind), e.CreateAttribute(onDataset, "nested", dtype.Bool))
}

func TestReadOnly(t *testing.T) {
	store := memstore.New()
	e, err := backend.NewEngine(store)
	require.NoError(t, err)
	mustGroup(t, e, e.FileID(), "g")

	ro, err := backend.NewEngine(store, backend.ReadOnly())
	require.NoError(t, err)
	assert.True(t, ro.ReadOnly())
	assert.True(t, ro.OpenGroup(ro.FileID(), "g").Valid())
	assert.Equal(t, handle.ID(backend.StatusReadOnly), ro.CreateGroup(ro.FileID(), "h"))
	assert.Equal(t, backend.StatusReadOnly, ro.DeleteLink(ro.FileID(), "g"))

	_, err = backend.NewEngine(memstore.New(), backend.ReadOnly())
	assert.Error(t, err, "an empty store has no root to open read-only")
}

func TestClosedEngine(t *testing.T) {
	e, err := backend.NewEngine(memstore.New())
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.Equal(t, handle.ID(backend.StatusClosed), e.OpenGroup(e.FileID(), "/"))
	assert.Error(t, e.Flush())
}
