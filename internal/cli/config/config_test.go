package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/snapkeep/internal/retention"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Store.BaseDir != DefaultBaseDir || cfg.Store.Serializer != DefaultSerializer {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Retention.Type != retention.TypeAll {
		t.Errorf("Retention.Type = %q", cfg.Retention.Type)
	}
	if cfg.Output != DefaultOutput || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Output = %q, Log = %+v", cfg.Output, cfg.Log)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify(Default()) error = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
store:
  base_dir: /data/snaps
  serializer: yaml
  journal: true
retention:
  type: and
  policies:
    - type: every
      interval: 3
    - type: at_most
      max_entries: 5
simulate:
  step_interval: 30s
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.BaseDir != "/data/snaps" || cfg.Store.Serializer != "yaml" || !cfg.Store.Journal {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if len(cfg.Retention.Policies) != 2 || cfg.Retention.Policies[1].MaxEntries != 5 {
		t.Errorf("Retention = %+v", cfg.Retention)
	}
	if cfg.Simulate.StepInterval != 30*time.Second {
		t.Errorf("StepInterval = %v", cfg.Simulate.StepInterval)
	}
	if cfg.Simulate.Steps != DefaultSimulateSteps {
		t.Errorf("Steps = %d, default lost", cfg.Simulate.Steps)
	}
	if _, err := cfg.NewPolicy(); err != nil {
		t.Errorf("NewPolicy() error = %v", err)
	}
}

func TestLoad_Priority(t *testing.T) {
	path := writeFile(t, `
store:
  base_dir: from-file
  serializer: yaml
log:
  level: warn
`)
	t.Setenv("SNAPKEEP_STORE__BASE_DIR", "from-env")
	t.Setenv("SNAPKEEP_LOG__LEVEL", "error")

	cfg, err := Load(path, map[string]any{"log.level": "debug"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.BaseDir != "from-env" {
		t.Errorf("BaseDir = %q, want from-env", cfg.Store.BaseDir)
	}
	if cfg.Store.Serializer != "yaml" {
		t.Errorf("Serializer = %q, want yaml", cfg.Store.Serializer)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, flags should win", cfg.Log.Level)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Error("Load() should fail for a missing explicit file")
	}
}

func TestLoad_InvalidRetention(t *testing.T) {
	path := writeFile(t, "retention:\n  type: every\n")
	_, err := Load(path, nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !strings.Contains(err.Error(), "retention") {
		t.Errorf("error %q does not name the section", err)
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"base dir", func(c *Config) { c.Store.BaseDir = " " }, "store.base_dir"},
		{"serializer", func(c *Config) { c.Store.Serializer = "pickle" }, "store.serializer"},
		{"weak passphrase", func(c *Config) { c.Store.Passphrase = "abc" }, "store.passphrase"},
		{"gc threshold", func(c *Config) { c.Catalog.Enabled = true; c.Catalog.GCThreshold = 1.5 }, "catalog.gc_threshold"},
		{"steps", func(c *Config) { c.Simulate.Steps = -1 }, "simulate.steps"},
		{"burst", func(c *Config) { c.Simulate.Rate = 5; c.Simulate.Burst = 0 }, "simulate.burst"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"output", func(c *Config) { c.Output = "csv" }, "output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Verify(cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Verify() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Verify() error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestVerify_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Store.Serializer = "pickle"
	cfg.Output = "csv"

	err := Verify(cfg)
	if !strings.Contains(err.Error(), "store.serializer") || !strings.Contains(err.Error(), "output") {
		t.Errorf("Verify() error = %q, want both problems", err)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Store.Passphrase = "correct horse"

	s := Sanitize(cfg)
	if s.Store.Passphrase != "co*********se" {
		t.Errorf("masked passphrase = %q", s.Store.Passphrase)
	}
	if cfg.Store.Passphrase != "correct horse" {
		t.Error("Sanitize() modified the original")
	}
	if maskSecret("abc") != "****" {
		t.Errorf("maskSecret(short) = %q", maskSecret("abc"))
	}
}

func TestNewSerializer(t *testing.T) {
	cfg := Default()
	cfg.Store.Serializer = "msgpack"

	s, err := cfg.NewSerializer()
	if err != nil {
		t.Fatalf("NewSerializer() error = %v", err)
	}
	if s.Name() != "msgpack" {
		t.Errorf("Name() = %q", s.Name())
	}

	cfg.Store.Passphrase = "correct horse"
	s, err = cfg.NewSerializer()
	if err != nil {
		t.Fatalf("NewSerializer() sealed error = %v", err)
	}
	if s.Name() != "sealed+msgpack" {
		t.Errorf("Name() = %q, want sealed+msgpack", s.Name())
	}
}

func TestCatalogConfig(t *testing.T) {
	cfg := Default()
	cfg.Store.BaseDir = "/data"
	cfg.Catalog.GCInterval = 0

	cc := cfg.CatalogConfig()
	if cc.Dir != filepath.Join("/data", ".catalog") || cc.GCInterval != 0 {
		t.Errorf("CatalogConfig() = %+v", cc)
	}
}
