package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
storage:
  type: badger
  badger:
    in_memory: true
    block_cache_size_mb: 16
datasets:
  compression: 5
  shuffle: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, StorageBadger, cfg.Storage.Type)
	assert.Equal(t, 5, cfg.Datasets.Compression)
	assert.True(t, cfg.Datasets.Shuffle)

	bc, err := cfg.Storage.BadgerConfig("")
	require.NoError(t, err)
	assert.True(t, bc.InMemory)
	assert.Equal(t, int64(16), bc.BlockCacheSizeMB)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, StorageSnapshot, cfg.Storage.Type)
	assert.Zero(t, cfg.Datasets.Compression)
}

func TestLoadDefaultLocation(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "h5tree"), 0o755))
	require.NoError(t, os.WriteFile(DefaultConfigPath(), []byte("datasets:\n  compression: 2\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Datasets.Compression)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: error\n")
	t.Setenv("H5TREE_LOGGING_LEVEL", "warn")
	t.Setenv("H5TREE_DATASETS_COMPRESSION", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Datasets.Compression)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "logging: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  type: s3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Storage.Type")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Logging.Level = "TRACE" }, "Logging.Level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "Logging.Format"},
		{"no output", func(c *Config) { c.Logging.Output = "" }, "Logging.Output"},
		{"compression too high", func(c *Config) { c.Datasets.Compression = 10 }, "Datasets.Compression"},
		{"negative compression", func(c *Config) { c.Datasets.Compression = -1 }, "Datasets.Compression"},
		{"unknown badger key", func(c *Config) {
			c.Storage.Type = StorageBadger
			c.Storage.Badger = map[string]any{"dirr": "/tmp/x"}
		}, "storage.badger"},
		{"negative cache", func(c *Config) {
			c.Storage.Type = StorageBadger
			c.Storage.Badger = map[string]any{"index_cache_size_mb": -4}
		}, "cache sizes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.errSub == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestBadgerConfig(t *testing.T) {
	sc := StorageConfig{Type: StorageBadger, Badger: map[string]any{
		"dir":                 "/var/lib/h5",
		"sync_writes":         "true",
		"index_cache_size_mb": "32",
	}}

	bc, err := sc.BadgerConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/h5", bc.Dir)
	assert.True(t, bc.SyncWrites)
	assert.Equal(t, int64(32), bc.IndexCacheSizeMB)
	assert.Nil(t, bc.Logger)

	bc, err = sc.BadgerConfig("/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", bc.Dir)
}

func TestNewLogger(t *testing.T) {
	log, closer, err := NewLogger(LoggingConfig{Level: "WARN", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
	assert.Equal(t, os.Stdout, log.Out)

	out := filepath.Join(t.TempDir(), "h5tree.log")
	log, closer, err = NewLogger(LoggingConfig{Level: "INFO", Format: "text", Output: out})
	require.NoError(t, err)
	log.WithField("path", "/a").Info("created group")
	log.Debug("hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "created group")
	assert.Contains(t, string(data), "path=/a")
	assert.False(t, strings.Contains(string(data), "hidden"))

	_, _, err = NewLogger(LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}
