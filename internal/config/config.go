// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the working directory.
const DefaultFile = "tablegen.yaml"

// Config is the root configuration structure.
type Config struct {
	Root       string          `yaml:"root"`
	IncludeDir string          `yaml:"include_dir"`
	ManagedDir string          `yaml:"managed_dir"`
	Operators  OperatorsConfig `yaml:"operators"`
	Native     NativeConfig    `yaml:"native"`
	Cache      CacheConfig     `yaml:"cache"`
	Logging    LoggingConfig   `yaml:"logging"`
	Metrics    MetricsConfig   `yaml:"metrics"`
	Watch      WatchConfig     `yaml:"watch"`
}

// OperatorsConfig names the operator declaration document and its enum.
type OperatorsConfig struct {
	Document string `yaml:"document"`
	Enum     string `yaml:"enum"`
}

// NativeConfig configures native output.
type NativeConfig struct {
	// Includes are prepended to every header. Default: <retro/common.hpp>.
	Includes []string `yaml:"includes"`
}

// CacheConfig configures the fingerprint cache.
// An empty path keeps fingerprints in memory for the process lifetime.
type CacheConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// MetricsConfig configures metrics export.
// An empty file disables the textfile export.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads, expands, defaults and validates the configuration at path.
// Relative paths in the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	cfg.resolve(filepath.Dir(path))

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// applyEnvOverrides applies TABLEGEN_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TABLEGEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TABLEGEN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("TABLEGEN_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("TABLEGEN_METRICS_FILE"); v != "" {
		cfg.Metrics.File = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.IncludeDir == "" {
		cfg.IncludeDir = "include"
	}
	if cfg.Operators.Enum == "" {
		cfg.Operators.Enum = "op"
	}
	if cfg.Native.Includes == nil {
		cfg.Native.Includes = []string{"<retro/common.hpp>"}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
}

// resolve makes relative paths relative to dir.
func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Root, &c.ManagedDir, &c.Operators.Document, &c.Cache.Path, &c.Metrics.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func validate(cfg *Config) error {
	if filepath.Base(cfg.IncludeDir) != cfg.IncludeDir {
		return fmt.Errorf("include_dir must be a single directory name, got %q", cfg.IncludeDir)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true, "disabled": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, disabled")
	}

	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}

	for i, inc := range cfg.Native.Includes {
		if len(inc) < 2 || !(inc[0] == '<' && inc[len(inc)-1] == '>' || inc[0] == '"' && inc[len(inc)-1] == '"') {
			return fmt.Errorf("native.includes[%d] must be <path> or \"path\", got %q", i, inc)
		}
	}

	return nil
}
