package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5tree/hdf5"
	"github.com/robert-malhotra/h5tree/internal/backend/badgerstore"
)

// BadgerConfig decodes the storage.badger section. A non-empty dir
// overrides the configured directory.
func (c *StorageConfig) BadgerConfig(dir string) (badgerstore.Config, error) {
	var bc badgerstore.Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &bc,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return bc, err
	}
	if err := dec.Decode(c.Badger); err != nil {
		return bc, fmt.Errorf("failed to decode badger store config: %w", err)
	}
	if dir != "" {
		bc.Dir = dir
	}
	return bc, nil
}

// FileOptions translates the dataset defaults into file options.
func (c *Config) FileOptions(log logrus.FieldLogger) []hdf5.FileOption {
	opts := []hdf5.FileOption{hdf5.WithLogger(log)}
	if c.Datasets.Compression > 0 {
		opts = append(opts, hdf5.WithDefaultCompression(c.Datasets.Compression))
	}
	if c.Datasets.Shuffle {
		opts = append(opts, hdf5.WithDefaultShuffle())
	}
	return opts
}

// CreateFile creates a new container at path on the configured backend.
// For badger, path is the database directory.
func CreateFile(cfg *Config, path string, log logrus.FieldLogger) (*hdf5.File, error) {
	opts := cfg.FileOptions(log)
	switch cfg.Storage.Type {
	case StorageSnapshot:
		return hdf5.Create(path, opts...)
	case StorageBadger:
		return openBadger(cfg, path, opts)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}
}

// OpenFile opens an existing container at path on the configured backend.
func OpenFile(cfg *Config, path string, readOnly bool, log logrus.FieldLogger) (*hdf5.File, error) {
	opts := cfg.FileOptions(log)
	if readOnly {
		opts = append(opts, hdf5.WithReadOnly())
	}
	switch cfg.Storage.Type {
	case StorageSnapshot:
		if readOnly {
			return hdf5.Open(path, opts...)
		}
		return hdf5.OpenReadWrite(path, opts...)
	case StorageBadger:
		return openBadger(cfg, path, opts)
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Storage.Type)
	}
}

func openBadger(cfg *Config, dir string, opts []hdf5.FileOption) (*hdf5.File, error) {
	bc, err := cfg.Storage.BadgerConfig(dir)
	if err != nil {
		return nil, err
	}
	if bc.Dir == "" && !bc.InMemory {
		return nil, fmt.Errorf("badger store: dir is required")
	}
	return hdf5.OpenBadger(bc, opts...)
}
