package config

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/h5tree/hdf5"
)

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func TestSnapshotFiles(t *testing.T) {
	cfg := Default()
	cfg.Datasets.Compression = 3
	path := filepath.Join(t.TempDir(), "c.h5")

	f, err := CreateFile(cfg, path, nullLogger())
	require.NoError(t, err)
	ds, err := f.Root().CreateDataset("a/d", hdf5.Int64.WithShape(8))
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Compression())
	require.NoError(t, f.Close())

	f, err = OpenFile(cfg, path, true, nullLogger())
	require.NoError(t, err)
	assert.True(t, f.IsReadOnly())
	ok, err := f.Root().HasDataset("a/d")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, f.Close())

	f, err = OpenFile(cfg, path, false, nullLogger())
	require.NoError(t, err)
	assert.False(t, f.IsReadOnly())
	require.NoError(t, f.Close())
}

func TestBadgerFiles(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = StorageBadger
	dir := t.TempDir()

	f, err := CreateFile(cfg, dir, nullLogger())
	require.NoError(t, err)
	_, err = f.Root().CreateGroup("g")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenFile(cfg, dir, true, nullLogger())
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"g"}, f.Root().Groups())

	_, err = OpenFile(cfg, "", false, nullLogger())
	assert.Error(t, err)
}

func TestUnknownStorage(t *testing.T) {
	cfg := Default()
	cfg.Storage.Type = "tape"
	_, err := CreateFile(cfg, "x", nullLogger())
	assert.Error(t, err)
	_, err = OpenFile(cfg, "x", true, nullLogger())
	assert.Error(t, err)
}
