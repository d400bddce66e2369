package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alertme/runguard/internal/gitsync"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v, "/srv/alertme")
	require.NoError(t, err)

	assert.Equal(t, "./batch_alertme", cfg.Batch)
	assert.Equal(t, 3, cfg.DefaultPages)
	assert.Equal(t, 55*time.Minute, cfg.LockStaleAfter)
	assert.Equal(t, gitsync.PolicyFFOnly, cfg.Policy())
	assert.Equal(t, "INFO", cfg.ChildLogLevel)

	assert.Equal(t, "/srv/alertme/run_batch.lock", cfg.LockPath())
	assert.Equal(t, "/srv/alertme/run_batch.log", cfg.LogPath())
	assert.Equal(t, "/srv/alertme/run_batch.prom", cfg.MetricsPath())
	assert.Equal(t, "/srv/alertme/batch_alertme", cfg.BatchPath())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	yml := `
batch: /opt/alertme/batch_alertme
batch_config: events.jsonl
default_pages: 5
lock_stale_after: 30m
sync_policy: rebase
metrics_file: ""
`
	path := filepath.Join(dir, "guard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v, dir)
	require.NoError(t, err)

	assert.Equal(t, "/opt/alertme/batch_alertme", cfg.BatchPath(), "absolute paths pass through")
	assert.Equal(t, filepath.Join(dir, "events.jsonl"), cfg.BatchConfigPath())
	assert.Equal(t, 5, cfg.DefaultPages)
	assert.Equal(t, 30*time.Minute, cfg.LockStaleAfter)
	assert.Equal(t, gitsync.PolicyRebase, cfg.Policy())
	assert.Equal(t, "", cfg.MetricsPath(), "empty metrics_file disables the textfile")
}

func TestValidate(t *testing.T) {
	base := Config{
		Root:           "/srv/alertme",
		Batch:          "./batch_alertme",
		BatchConfig:    "./alerts.jsonl",
		DefaultPages:   3,
		LockStaleAfter: DefaultStaleAfter,
		SyncPolicy:     "ff-only",
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty root", func(c *Config) { c.Root = "" }},
		{"empty batch", func(c *Config) { c.Batch = "" }},
		{"empty batch config", func(c *Config) { c.BatchConfig = "" }},
		{"zero pages", func(c *Config) { c.DefaultPages = 0 }},
		{"negative staleness", func(c *Config) { c.LockStaleAfter = -time.Minute }},
		{"bad policy", func(c *Config) { c.SyncPolicy = "merge" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guard.yaml")
	require.NoError(t, WriteExample(path))

	// The generated file must load back with the same semantics.
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v, filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, DefaultStaleAfter, cfg.LockStaleAfter)

	assert.Error(t, WriteExample(path), "must not overwrite an existing config")
}
