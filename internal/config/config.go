// Package config loads h5tree settings from a YAML file, H5TREE_*
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
// Nested keys use underscores: H5TREE_LOGGING_LEVEL=debug.
const EnvPrefix = "H5TREE"

// Storage types.
const (
	StorageSnapshot = "snapshot"
	StorageBadger   = "badger"
)

// Config is the complete h5tree configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (H5TREE_*)
//  2. Configuration file (YAML)
//  3. Default values
type Config struct {
	// Logging controls log output.
	Logging LoggingConfig `mapstructure:"logging"`

	// Storage selects the backend that holds the object graph.
	Storage StorageConfig `mapstructure:"storage"`

	// Datasets holds creation defaults for new datasets.
	Datasets DatasetsConfig `mapstructure:"datasets"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum level to output: DEBUG, INFO, WARN or ERROR
	// (case-insensitive, normalized to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required"`
}

// StorageConfig specifies the storage backend.
//
// Type picks the implementation; only the matching type-specific section
// is used.
type StorageConfig struct {
	// Type is snapshot (a single container file) or badger (a Badger
	// database directory).
	Type string `mapstructure:"type" validate:"required,oneof=snapshot badger"`

	// Badger holds badgerstore options. Only used when Type = "badger".
	Badger map[string]any `mapstructure:"badger"`
}

// DatasetsConfig holds defaults applied to datasets created without
// explicit filter options.
type DatasetsConfig struct {
	// Compression is the deflate level, 0 (none) to 9.
	Compression int `mapstructure:"compression" validate:"gte=0,lte=9"`

	// Shuffle enables byte shuffling ahead of compression.
	Shuffle bool `mapstructure:"shuffle"`
}

// Load reads configuration from configPath (or the default location when
// empty), the environment and defaults, then validates it.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only consults keys viper already knows about.
	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.format", defaultLogFormat)
	v.SetDefault("logging.output", defaultLogOutput)
	v.SetDefault("storage.type", StorageSnapshot)
	v.SetDefault("datasets.compression", 0)
	v.SetDefault("datasets.shuffle", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// ConfigDir returns $XDG_CONFIG_HOME/h5tree, falling back to
// ~/.config/h5tree and finally the current directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "h5tree")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "h5tree")
}

// DefaultConfigPath returns the file Load reads when given no path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
