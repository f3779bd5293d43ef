// Package config loads labelerdir settings. Values are layered: built-in
// defaults, then an optional YAML file, then LABELERDIR_* environment
// variables. Command-line flags are applied on top by the caller.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"labelerdir/internal/bsky"
	"labelerdir/internal/directory"
	"labelerdir/internal/labelers"
	"labelerdir/internal/snapshot"
)

// MaxBatchSize is the largest dids list app.bsky.labeler.getServices accepts.
const MaxBatchSize = 25

const envPrefix = "LABELERDIR_"

type Config struct {
	DirectoryURL   string        `yaml:"directory_url"`
	AppViewURL     string        `yaml:"appview_url"`
	BatchSize      int           `yaml:"batch_size"`
	Revalidate     time.Duration `yaml:"revalidate"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
	Partial        bool          `yaml:"partial"`
	ResolveWorkers int           `yaml:"resolve_workers"`
	Listen         string        `yaml:"listen"`
	Token          string        `yaml:"token"`
	UserAgent      string        `yaml:"user_agent"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DirectoryURL:   directory.DefaultURL,
		AppViewURL:     bsky.DefaultHost,
		BatchSize:      labelers.DefaultBatchSize,
		Revalidate:     snapshot.DefaultInterval,
		RequestTimeout: 30 * time.Second,
		ResolveWorkers: 8,
		Listen:         "localhost:8765",
		UserAgent:      "labelerdir/1.0",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*dst = v
		}
	}
	str("DIRECTORY_URL", &c.DirectoryURL)
	str("APPVIEW_URL", &c.AppViewURL)
	str("LISTEN", &c.Listen)
	str("TOKEN", &c.Token)
	str("USER_AGENT", &c.UserAgent)

	if v, ok := os.LookupEnv(envPrefix + "BATCH_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %sBATCH_SIZE %q: %w", envPrefix, v, err)
		}
		c.BatchSize = n
	}
	if v, ok := os.LookupEnv(envPrefix + "RESOLVE_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %sRESOLVE_WORKERS %q: %w", envPrefix, v, err)
		}
		c.ResolveWorkers = n
	}
	if v, ok := os.LookupEnv(envPrefix + "REVALIDATE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid %sREVALIDATE %q: %w", envPrefix, v, err)
		}
		c.Revalidate = d
	}
	if v, ok := os.LookupEnv(envPrefix + "REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid %sREQUEST_TIMEOUT %q: %w", envPrefix, v, err)
		}
		c.RequestTimeout = d
	}
	if v, ok := os.LookupEnv(envPrefix + "RATE_LIMIT_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: invalid %sRATE_LIMIT_RPS %q: %w", envPrefix, v, err)
		}
		c.RateLimitRPS = f
	}
	if v, ok := os.LookupEnv(envPrefix + "PARTIAL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid %sPARTIAL %q: %w", envPrefix, v, err)
		}
		c.Partial = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0 || c.BatchSize > MaxBatchSize:
		return fmt.Errorf("config: batch_size must be between 1 and %d, got %d", MaxBatchSize, c.BatchSize)
	case c.Revalidate <= 0:
		return fmt.Errorf("config: revalidate must be positive, got %s", c.Revalidate)
	case c.RequestTimeout < 0:
		return fmt.Errorf("config: request_timeout must not be negative, got %s", c.RequestTimeout)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("config: rate_limit_rps must not be negative, got %g", c.RateLimitRPS)
	case c.DirectoryURL == "":
		return fmt.Errorf("config: directory_url is required")
	case c.AppViewURL == "":
		return fmt.Errorf("config: appview_url is required")
	}
	return nil
}

// PipelineOptions maps the config onto labelers.Options.
func (c *Config) PipelineOptions() labelers.Options {
	return labelers.Options{
		BatchSize:      c.BatchSize,
		Partial:        c.Partial,
		RateLimitRPS:   c.RateLimitRPS,
		RequestTimeout: c.RequestTimeout,
		ResolveWorkers: c.ResolveWorkers,
	}
}
