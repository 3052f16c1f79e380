package hdf5

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5tree/internal/dtype"
)

func TestAttributeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		typ   Type
		value interface{}
	}{
		{"int32", Int32, int32(-42)},
		{"uint64", Uint64, uint64(1 << 50)},
		{"float64 matrix", Float64.WithShape(2, 3), []float64{1, 2, 3, 4, 5, 6}},
		{"bool vector", Bool.WithShape(4), []bool{true, false, false, true}},
		{"complex128", Complex128, complex(1.5, -0.25)},
		{"fixed string", FixedString(8), "meters"},
		{"strings", FixedString(3).WithShape(2), []string{"abc", "de"}},
	}

	f := newMemFile(t)
	g, err := f.Root().CreateGroup("g")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := dtype.Encode(tt.typ, tt.value)
			require.NoError(t, err)

			require.NoError(t, g.WriteAttribute(tt.name, tt.typ, buf))
			ok, err := g.HasAttribute(tt.name)
			require.NoError(t, err)
			assert.True(t, ok)

			out := make([]byte, tt.typ.ByteSize())
			require.NoError(t, g.ReadAttribute(tt.name, tt.typ, out))
			assert.Equal(t, buf, out)

			stored, err := g.AttributeType(tt.name)
			require.NoError(t, err)
			assert.True(t, stored.Equal(tt.typ), "stored %s", stored)
		})
	}
}

func TestAttributeTypeMismatch(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	require.NoError(t, root.SetAttr("count", int32(5)))

	out := make([]byte, 8)
	err := root.ReadAttribute("count", Int64, out)
	require.ErrorIs(t, err, ErrTypeMismatch)

	var le *LogicError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "count", le.Name)
	assert.Equal(t, "test.h5", le.File)
	assert.Contains(t, le.Detail, "int32")
	assert.Contains(t, le.Detail, "int64")
	assert.Equal(t, make([]byte, 8), out)

	// The stored attribute is unchanged.
	var v int32
	require.NoError(t, root.Attr("count", &v))
	assert.Equal(t, int32(5), v)

	// Shape is part of the type.
	require.NoError(t, root.SetAttr("vec", []float32{1, 2}))
	err = root.ReadAttribute("vec", Float32.WithShape(3), make([]byte, 12))
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestAttributeOverwrite(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()

	require.NoError(t, root.SetAttr("x", int32(1)))
	require.NoError(t, root.SetAttr("x", []float64{0.5, 1.5}))

	typ, err := root.AttributeType("x")
	require.NoError(t, err)
	assert.Equal(t, "float64@(2)", typ.String())

	var vals []float64
	require.NoError(t, root.Attr("x", &vals))
	assert.Equal(t, []float64{0.5, 1.5}, vals)

	names, err := root.Attributes()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)
}

func TestAttributeBufferSize(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()

	err := root.WriteAttribute("x", Int32, []byte{1, 2})
	assert.ErrorIs(t, err, ErrBufferSize)
	ok, err := root.HasAttribute("x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, root.SetAttr("x", int32(3)))
	err = root.ReadAttribute("x", Int32, make([]byte, 3))
	assert.ErrorIs(t, err, ErrBufferSize)

	err = root.WriteAttribute("bad", Type{}, nil)
	assert.Error(t, err)
}

func TestDeleteAttribute(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	require.NoError(t, root.SetAttr("a", "x"))
	require.NoError(t, root.SetAttr("b", "y"))

	require.NoError(t, root.DeleteAttribute("a"))
	names, err := root.Attributes()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)

	err = root.DeleteAttribute("a")
	assert.True(t, IsStatus(err, StatusNotFound), "got %v", err)

	err = root.ReadAttribute("a", FixedString(1), make([]byte, 1))
	assert.True(t, IsStatus(err, StatusNotFound), "got %v", err)
}

func TestDatasetAttributes(t *testing.T) {
	f := newMemFile(t)
	ds, err := f.Root().CreateDataset("d", Float64,
		WithAttribute("units", "s"),
		WithAttribute("scale", []float64{1, 10}),
	)
	require.NoError(t, err)

	names, err := ds.Attributes()
	require.NoError(t, err)
	assert.Equal(t, []string{"scale", "units"}, names)

	var units string
	require.NoError(t, ds.Attr("units", &units))
	assert.Equal(t, "s", units)

	var scale []float64
	require.NoError(t, ds.Attr("scale", &scale))
	assert.Equal(t, []float64{1, 10}, scale)

	// Dataset attributes do not leak to the parent.
	ok, err := f.Root().HasAttribute("units")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileAttributePaths(t *testing.T) {
	f := newMemFile(t)
	_, err := f.Root().CreateDataset("sensors/temp", Float32)
	require.NoError(t, err)

	require.NoError(t, f.WriteAttr("/@title", "run 7"))
	require.NoError(t, f.WriteAttr("/sensors@count", int64(1)))
	require.NoError(t, f.WriteAttr("/sensors/temp@units", "K"))

	v, err := f.ReadAttr("/@title")
	require.NoError(t, err)
	assert.Equal(t, "run 7", v)

	v, err = f.ReadAttr("/sensors@count")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = f.ReadAttr("sensors/temp@units")
	require.NoError(t, err)
	assert.Equal(t, "K", v)

	_, err = f.ReadAttr("/missing@x")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.ReadAttr("/sensors")
	assert.Error(t, err)

	obj, err := f.Lookup("/sensors/temp")
	require.NoError(t, err)
	_, ok := obj.(*Dataset)
	assert.True(t, ok)
	obj, err = f.Lookup("/sensors")
	require.NoError(t, err)
	_, ok = obj.(*Group)
	assert.True(t, ok)
}
