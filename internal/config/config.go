// Package config holds the run configuration. It is loaded once at
// process start and passed into the guard as an immutable value; the
// guard itself reads no ambient state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/alertme/runguard/internal/gitsync"
)

// Fixed artifact names, co-located in the working root.
const (
	LockFileName = "run_batch.lock"
	LogFileName  = "run_batch.log"
)

// DefaultStaleAfter is the lock freshness threshold: a marker older
// than this is treated as abandoned.
const DefaultStaleAfter = 55 * time.Minute

// Config describes one guarded run.
type Config struct {
	// Root is the working root holding the lock, the log, the batch
	// config and (optionally) the git repository.
	Root string `mapstructure:"-" yaml:"-"`

	// Batch is the batch executable invoked as
	// `<batch> --config <batch_config> --default-pages <N>`.
	Batch        string `mapstructure:"batch" yaml:"batch"`
	BatchConfig  string `mapstructure:"batch_config" yaml:"batch_config"`
	DefaultPages int    `mapstructure:"default_pages" yaml:"default_pages"`

	LockStaleAfter time.Duration `mapstructure:"lock_stale_after" yaml:"lock_stale_after"`
	SyncPolicy     string        `mapstructure:"sync_policy" yaml:"sync_policy"`

	// ChildLogLevel is exported to the batch process as LOG_LEVEL.
	ChildLogLevel string `mapstructure:"child_log_level" yaml:"child_log_level"`

	// MetricsFile is the last-run Prometheus textfile, relative to
	// Root. Empty disables it.
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`

	// ExporterListen is the bind address of `runguard exporter`.
	ExporterListen string `mapstructure:"exporter_listen" yaml:"exporter_listen"`
}

// SetDefaults registers defaults on v, mirroring the reference
// deployment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("batch", "./batch_alertme")
	v.SetDefault("batch_config", "./alerts.jsonl")
	v.SetDefault("default_pages", 3)
	v.SetDefault("lock_stale_after", DefaultStaleAfter)
	v.SetDefault("sync_policy", string(gitsync.PolicyFFOnly))
	v.SetDefault("child_log_level", "INFO")
	v.SetDefault("metrics_file", "run_batch.prom")
	v.SetDefault("exporter_listen", ":9507")
}

// Load unmarshals the configuration from v, anchors it at root and
// validates it.
func Load(v *viper.Viper, root string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse configuration: %w", err)
	}
	cfg.Root = root
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants the guard relies on.
func (c Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("working root must not be empty")
	}
	if c.Batch == "" {
		return fmt.Errorf("batch executable path must not be empty")
	}
	if c.BatchConfig == "" {
		return fmt.Errorf("batch config path must not be empty")
	}
	if c.DefaultPages <= 0 {
		return fmt.Errorf("default_pages must be positive, got %d", c.DefaultPages)
	}
	if c.LockStaleAfter <= 0 {
		return fmt.Errorf("lock_stale_after must be positive, got %s", c.LockStaleAfter)
	}
	if _, err := gitsync.ParsePolicy(c.SyncPolicy); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed sync policy. Call after Validate.
func (c Config) Policy() gitsync.Policy {
	p, _ := gitsync.ParsePolicy(c.SyncPolicy)
	return p
}

// resolve anchors a possibly relative path at the working root.
func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

// LockPath returns the lock marker path.
func (c Config) LockPath() string { return filepath.Join(c.Root, LockFileName) }

// LogPath returns the run log path.
func (c Config) LogPath() string { return filepath.Join(c.Root, LogFileName) }

// BatchPath returns the resolved batch executable path.
func (c Config) BatchPath() string { return c.resolve(c.Batch) }

// BatchConfigPath returns the resolved batch config path.
func (c Config) BatchConfigPath() string { return c.resolve(c.BatchConfig) }

// MetricsPath returns the resolved metrics textfile path, or "" when
// metrics are disabled.
func (c Config) MetricsPath() string {
	if c.MetricsFile == "" {
		return ""
	}
	return c.resolve(c.MetricsFile)
}

// WriteExample writes a guard.yaml with the default values to path.
// Durations are rendered in their "55m0s" form so the file round-trips
// through viper. Refuses to overwrite an existing file.
func WriteExample(path string) error {
	example := struct {
		Batch          string `yaml:"batch"`
		BatchConfig    string `yaml:"batch_config"`
		DefaultPages   int    `yaml:"default_pages"`
		LockStaleAfter string `yaml:"lock_stale_after"`
		SyncPolicy     string `yaml:"sync_policy"`
		ChildLogLevel  string `yaml:"child_log_level"`
		MetricsFile    string `yaml:"metrics_file"`
		ExporterListen string `yaml:"exporter_listen"`
	}{
		Batch:          "./batch_alertme",
		BatchConfig:    "./alerts.jsonl",
		DefaultPages:   3,
		LockStaleAfter: DefaultStaleAfter.String(),
		SyncPolicy:     string(gitsync.PolicyFFOnly),
		ChildLogLevel:  "INFO",
		MetricsFile:    "run_batch.prom",
		ExporterListen: ":9507",
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
