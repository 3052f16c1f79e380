package hdf5

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	for _, p := range []string{"b/y", "a/x", "a/sub/z", "top"} {
		_, err := root.CreateDataset(p, Int32)
		require.NoError(t, err)
	}

	var visited []string
	var groups, datasets int
	err := Walk(root, func(path string, obj interface{}) error {
		visited = append(visited, path)
		switch obj.(type) {
		case *Group:
			groups++
		case *Dataset:
			datasets++
		}
		return nil
	})
	require.NoError(t, err)

	want := []string{"/", "/a", "/a/sub", "/a/sub/z", "/a/x", "/b", "/b/y", "/top"}
	assert.Equal(t, want, visited)
	assert.Equal(t, 4, groups)
	assert.Equal(t, 4, datasets)
}

func TestWalkStop(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	for _, p := range []string{"a", "b", "c"} {
		_, err := root.CreateDataset(p, Int8)
		require.NoError(t, err)
	}

	var visited []string
	err := Walk(root, func(path string, obj interface{}) error {
		visited = append(visited, path)
		if path == "/b" {
			return ErrStopWalk
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/a", "/b"}, visited)

	boom := errors.New("boom")
	err = Walk(root, func(string, interface{}) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsStopWalk(ErrStopWalk))
	assert.False(t, IsStopWalk(boom))
}

func TestWalkAttrs(t *testing.T) {
	f := newMemFile(t)
	root := f.Root()
	require.NoError(t, root.SetAttr("title", "demo"))
	ds, err := root.CreateDataset("g/d", Float64)
	require.NoError(t, err)
	require.NoError(t, ds.SetAttr("scale", []int32{1, 2}))

	var infos []AttrInfo
	require.NoError(t, f.WalkAttrs(func(info AttrInfo) error {
		infos = append(infos, info)
		return nil
	}))
	require.Len(t, infos, 2)

	assert.Equal(t, "/@title", infos[0].Path)
	assert.Equal(t, "group", infos[0].ObjectType)
	assert.Equal(t, "demo", infos[0].Value)

	assert.Equal(t, "/g/d@scale", infos[1].Path)
	assert.Equal(t, "/g/d", infos[1].ObjectPath)
	assert.Equal(t, "dataset", infos[1].ObjectType)
	assert.Equal(t, "scale", infos[1].Name)
	assert.Equal(t, "int32@(2)", infos[1].Type.String())
	assert.Equal(t, []int32{1, 2}, infos[1].Value)
	assert.NoError(t, infos[1].Err)
}
