package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-malhotra/h5tree/hdf5"
	"github.com/robert-malhotra/h5tree/internal/config"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	storage    string
	logLevel   string

	cfg    *config.Config
	log    *logrus.Logger
	closer io.Closer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "h5tree",
		Short:         "Inspect and edit h5tree container files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closer != nil {
				return a.closer.Close()
			}
			return nil
		},
	}
	a.bindFlags(root.PersistentFlags())

	root.AddCommand(
		newCreateCmd(a),
		newTreeCmd(a),
		newMkdirCmd(a),
		newMkdsCmd(a),
		newRmCmd(a),
		newMvCmd(a),
		newCpCmd(a),
		newAttrsCmd(a),
		newGetattrCmd(a),
		newSetattrCmd(a),
	)
	return root
}

func (a *app) bindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&a.configPath, "config", "c", "", "config file (default "+config.DefaultConfigPath()+")")
	fs.StringVar(&a.storage, "storage", "", "storage backend: snapshot or badger (overrides config)")
	fs.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.storage != "" {
		cfg.Storage.Type = a.storage
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log, closer, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.closer = cfg, log, closer
	return nil
}

func (a *app) open(path string, readOnly bool) (*hdf5.File, error) {
	f, err := config.OpenFile(a.cfg, path, readOnly, a.log)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// update opens path for writing, runs fn and closes the file, reporting
// the first error.
func (a *app) update(path string, fn func(f *hdf5.File) error) (err error) {
	f, err := a.open(path, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

// view is update for read-only access.
func (a *app) view(path string, fn func(f *hdf5.File) error) (err error) {
	f, err := a.open(path, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
