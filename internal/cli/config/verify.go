package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yndnr/snapkeep/internal/storage/serializer"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Verify validates the configuration and reports every problem found.
func Verify(cfg *Config) error {
	errs := []error{
		verifyStore(&cfg.Store),
		verifyCatalog(&cfg.Catalog),
		verifyRetention(cfg),
		verifySimulate(&cfg.Simulate),
		verifyLog(&cfg.Log),
		verifyOutput(cfg.Output),
	}
	return errors.Join(errs...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

func verifyStore(cfg *StoreSection) error {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return invalid("store.base_dir is required")
	}
	if _, err := serializer.ByName(cfg.Serializer); err != nil {
		return invalid("store.serializer: %v", err)
	}
	if cfg.Passphrase != "" {
		seal := serializer.SealConfig{Passphrase: []byte(cfg.Passphrase), Algorithm: cfg.SealAlgorithm}
		if err := seal.Validate(); err != nil {
			return invalid("store.passphrase: %v", err)
		}
	}
	return nil
}

func verifyCatalog(cfg *CatalogSection) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.GCInterval < 0 {
		return invalid("catalog.gc_interval must not be negative")
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		return invalid("catalog.gc_threshold must be between 0 and 1")
	}
	return nil
}

func verifyRetention(cfg *Config) error {
	if _, err := cfg.Retention.Build(); err != nil {
		return invalid("retention: %v", err)
	}
	return nil
}

func verifySimulate(cfg *SimulateSection) error {
	switch {
	case cfg.Steps < 0:
		return invalid("simulate.steps must not be negative")
	case cfg.Rate < 0:
		return invalid("simulate.rate must not be negative")
	case cfg.Rate > 0 && cfg.Burst < 1:
		return invalid("simulate.burst must be at least 1")
	case cfg.StepInterval < 0:
		return invalid("simulate.step_interval must not be negative")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Format) {
	case "", "text", "json":
		return nil
	default:
		return invalid("log.format %q is not text or json", cfg.Format)
	}
}

func verifyOutput(format string) error {
	switch strings.ToLower(format) {
	case "", "table", "json", "yaml":
		return nil
	default:
		return invalid("output %q is not table, json or yaml", format)
	}
}
