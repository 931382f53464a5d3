// Package config loads the sync job configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yuya-takeyama/strict-bunny-sync/pkg/syncerr"
)

// Backend selects the store implementation.
type Backend string

const (
	BackendBunny Backend = "bunny"
	BackendS3    Backend = "s3"
)

const (
	DefaultEndpoint   = "storage.bunnycdn.com"
	DefaultRemotePath = "/"
	DefaultLockFile   = ".strict-bunny-sync.lock"
)

// Config is the complete job configuration.
type Config struct {
	LocalPath   string  `yaml:"local_path"`
	StorageZone string  `yaml:"storage_zone"`
	Backend     Backend `yaml:"backend"`
	Endpoint    string  `yaml:"endpoint"`
	RemotePath  string  `yaml:"remote_path"`
	LockFile    string  `yaml:"lockfile"`

	Force   bool `yaml:"force"`
	DryRun  bool `yaml:"dry_run"`
	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`

	// Ignore lists remote prefixes that are never deleted.
	Ignore []string `yaml:"ignore"`
	// Exclude lists glob patterns skipped on both sides.
	Exclude []string `yaml:"exclude"`

	Concurrency     int    `yaml:"concurrency"`
	HTMLBarrier     bool   `yaml:"html_barrier"`
	MetricsTextfile string `yaml:"metrics_textfile"`

	S3  S3Config  `yaml:"s3"`
	Log LogConfig `yaml:"log"`
}

// S3Config configures the s3 backend.
type S3Config struct {
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig configures operational logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns a configuration with every default applied and nothing else set.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Parse reads a configuration file without validating it, so that command
// line flags can still fill in missing values before Validate.
func Parse(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, syncerr.Configuration("read config", fmt.Errorf("failed to read config file: %w", err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, syncerr.Configuration("parse config", fmt.Errorf("failed to parse config file: %w", err))
	}

	cfg.expandEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// expandEnv expands environment variables in path-like fields.
func (c *Config) expandEnv() {
	c.LocalPath = os.ExpandEnv(c.LocalPath)
	c.StorageZone = os.ExpandEnv(c.StorageZone)
	c.Endpoint = os.ExpandEnv(c.Endpoint)
	c.RemotePath = os.ExpandEnv(c.RemotePath)
	c.MetricsTextfile = os.ExpandEnv(c.MetricsTextfile)
	c.S3.Endpoint = os.ExpandEnv(c.S3.Endpoint)
	c.S3.Profile = os.ExpandEnv(c.S3.Profile)
	c.Log.File = os.ExpandEnv(c.Log.File)
}

// ApplyDefaults fills in zero-value fields. Run it again after overriding
// fields, since a zero concurrency or an empty lock file means "default".
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendBunny
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.RemotePath == "" {
		c.RemotePath = DefaultRemotePath
	}
	// the lock file lives at the store root and is compared by remote name
	c.LockFile = strings.TrimLeft(c.LockFile, "/")
	if c.LockFile == "" {
		c.LockFile = DefaultLockFile
	}
	if c.Concurrency == 0 {
		c.Concurrency = runtime.NumCPU()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// Validate checks the configuration. Every failure is an ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return syncerr.Configuration("invalid configuration", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.LocalPath == "" {
		return errors.New("local_path is required")
	}
	if c.StorageZone == "" {
		return errors.New("storage_zone is required")
	}

	switch c.Backend {
	case BackendBunny, BackendS3:
	default:
		return fmt.Errorf("invalid backend: %s (must be bunny or s3)", c.Backend)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative: %d", c.Concurrency)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log.format: %s (must be console or json)", c.Log.Format)
	}

	info, err := os.Stat(c.LocalPath)
	if err != nil {
		return fmt.Errorf("local_path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local_path is not a directory: %s", c.LocalPath)
	}

	return nil
}
