package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// h5tree runs the command line with a throwaway config and returns its
// standard output.
func h5tree(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "logging:\n  level: error\n  output: " + filepath.Join(dir, "h5tree.log") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h5tree(t, args...)
	require.NoError(t, err, "h5tree %s", strings.Join(args, " "))
	return out
}

func TestTreeScenario(t *testing.T) {
	file := filepath.Join(t.TempDir(), "c.h5")
	mustRun(t, "create", file)
	mustRun(t, "mkdir", "-p", file, "images/raw", "docs")
	mustRun(t, "mkds", file, "images/raw/frame0", "--type", "uint16@(4,4)", "--compression", "3")
	mustRun(t, "mkds", file, "log/events", "--type", "string[32]", "--list")
	mustRun(t, "setattr", file, "/images@count", "1")
	mustRun(t, "setattr", file, "/images/raw/frame0@gain", "1.5,2.5", "--type", "float32@(2)")

	out := mustRun(t, "tree", file)
	want := strings.Join([]string{
		"/",
		"  docs/",
		"  images/",
		"    raw/",
		"      frame0  uint16@(4,4) (deflate)",
		"  log/",
		"    events  string[32] list[0]",
		"",
	}, "\n")
	assert.Equal(t, want, out)

	out = mustRun(t, "tree", "--attrs", file, "images")
	assert.Contains(t, out, "images/\n  @count = 1\n")
	assert.Contains(t, out, "@gain = [1.5 2.5]")

	mustRun(t, "mv", file, "images/raw/frame0", "archive/frame0")
	mustRun(t, "rm", file, "docs", "log/events")
	mustRun(t, "cp", file, "archive", "backup")

	out = mustRun(t, "tree", file)
	want = strings.Join([]string{
		"/",
		"  archive/",
		"    frame0  uint16@(4,4) (deflate)",
		"  backup/",
		"    frame0  uint16@(4,4) (deflate)",
		"  images/",
		"    raw/",
		"  log/",
		"",
	}, "\n")
	assert.Equal(t, want, out)

	out = mustRun(t, "getattr", file, "/backup/frame0@gain")
	assert.Equal(t, "[1.5 2.5]\n", out)
}

func TestTreeYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "y.h5")
	mustRun(t, "create", file)
	mustRun(t, "mkds", file, "a/samples", "--type", "int32", "--list", "--shuffle", "--fletcher32")
	mustRun(t, "setattr", file, "/a@label", "run seven")

	out := mustRun(t, "tree", "--yaml", "--attrs", file)
	var root treeNode
	require.NoError(t, yaml.Unmarshal([]byte(out), &root))

	assert.Equal(t, "/", root.Name)
	require.Len(t, root.Children, 1)
	a := root.Children[0]
	assert.Equal(t, "a", a.Name)
	assert.Equal(t, "group", a.Kind)
	assert.Equal(t, "run seven", a.Attributes["label"])
	require.Len(t, a.Children, 1)
	ds := a.Children[0]
	assert.Equal(t, "dataset", ds.Kind)
	assert.Equal(t, "int32", ds.Type)
	assert.True(t, ds.List)
	assert.Equal(t, []string{"shuffle", "fletcher32"}, ds.Filters)
}

func TestAttrsCommand(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.h5")
	mustRun(t, "create", file)
	mustRun(t, "mkdir", file, "g")
	mustRun(t, "setattr", file, "/@flag", "true")
	mustRun(t, "setattr", file, "/g@id", "0x10", "--type", "uint8")
	mustRun(t, "setattr", file, "/g@tags", "ab,cd", "--type", "string[2]@(2)")

	out := mustRun(t, "attrs", file)
	assert.Equal(t, "/@flag  bool  true\n/g@id  uint8  16\n/g@tags  string[2]@(2)  [ab cd]\n", out)

	out = mustRun(t, "attrs", "--yaml", file)
	var entries []attrEntry
	require.NoError(t, yaml.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "/g@id", entries[1].Path)
	assert.Equal(t, 16, entries[1].Value)
}

func TestCopyFromOtherFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.h5")
	dst := filepath.Join(dir, "dst.h5")
	mustRun(t, "create", src)
	mustRun(t, "create", dst)
	mustRun(t, "mkds", src, "x/y/z", "--type", "float64")
	mustRun(t, "setattr", src, "/x/y@note", "copied")

	mustRun(t, "cp", "--from", src, dst, "/x/y", "y2")
	assert.Equal(t, "copied\n", mustRun(t, "getattr", dst, "/y2@note"))
	assert.Equal(t, "/\n  y2/\n    z  float64\n", mustRun(t, "tree", dst))
}

func TestBadgerStorage(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, "--storage", "badger", "create", dir)
	mustRun(t, "--storage", "badger", "mkds", dir, "m/n", "--type", "bool")
	assert.Equal(t, "/\n  m/\n    n  bool\n", mustRun(t, "--storage", "badger", "tree", dir))
}

func TestCommandErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "e.h5")
	mustRun(t, "create", file)

	_, err := h5tree(t, "mkdir", file, "a/b")
	assert.Error(t, err)
	_, err = h5tree(t, "rm", file, "missing")
	assert.Error(t, err)
	_, err = h5tree(t, "mkds", file, "d", "--type", "int7")
	assert.Error(t, err)
	_, err = h5tree(t, "setattr", file, "/@x", "1,2", "--type", "int8@(3)")
	assert.Error(t, err)
	_, err = h5tree(t, "tree", filepath.Join(t.TempDir(), "nope.h5"))
	assert.Error(t, err)
	_, err = h5tree(t, "--storage", "tape", "tree", file)
	assert.Error(t, err)
}
