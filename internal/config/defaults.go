package config

import "strings"

const (
	defaultLogLevel  = "INFO"
	defaultLogFormat = "text"
	defaultLogOutput = "stderr"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults. Explicit values are
// preserved; the log level is normalized to uppercase.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = defaultLogLevel
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = defaultLogFormat
	}
	if cfg.Output == "" {
		cfg.Output = defaultLogOutput
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = StorageSnapshot
	}
	cfg.Type = strings.ToLower(cfg.Type)
	if cfg.Badger == nil {
		cfg.Badger = map[string]any{}
	}
}
