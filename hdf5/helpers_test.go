package hdf5

import (
	"sort"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// newTestLogger returns a debug-level logger that records entries instead
// of printing them.
func newTestLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func newMemFile(t *testing.T, opts ...FileOption) *File {
	t.Helper()
	log, _ := newTestLogger()
	f, err := CreateMemory("test.h5", append([]FileOption{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// subtree lists the paths below g relative to it, groups with a trailing
// slash.
func subtree(t *testing.T, g *Group) []string {
	t.Helper()
	prefix := g.Path()
	if prefix != "/" {
		prefix += "/"
	}
	var paths []string
	err := Walk(g, func(p string, obj interface{}) error {
		if p == g.Path() {
			return nil
		}
		rel := strings.TrimPrefix(p, prefix)
		if _, ok := obj.(*Group); ok {
			rel += "/"
		}
		paths = append(paths, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)
	return paths
}
