package config

import (
	"time"

	"github.com/yndnr/snapkeep/internal/retention"
)

// Config is the root snapkeep configuration.
type Config struct {
	Store     StoreSection    `koanf:"store" yaml:"store"`
	Catalog   CatalogSection  `koanf:"catalog" yaml:"catalog"`
	Retention retention.Spec  `koanf:"retention" yaml:"retention"`
	Simulate  SimulateSection `koanf:"simulate" yaml:"simulate"`
	Log       LogSection      `koanf:"log" yaml:"log"`
	Output    string          `koanf:"output" yaml:"output"`
}

// StoreSection configures snapshot storage.
type StoreSection struct {
	BaseDir    string `koanf:"base_dir" yaml:"base_dir"`
	Serializer string `koanf:"serializer" yaml:"serializer"`

	// Passphrase enables sealed snapshot files.
	Passphrase    string `koanf:"passphrase" yaml:"passphrase,omitempty"`
	SealAlgorithm string `koanf:"seal_algorithm" yaml:"seal_algorithm,omitempty"`

	Journal bool `koanf:"journal" yaml:"journal"`
}

// CatalogSection configures the stream catalog under the base directory.
type CatalogSection struct {
	Enabled     bool          `koanf:"enabled" yaml:"enabled"`
	GCInterval  time.Duration `koanf:"gc_interval" yaml:"gc_interval"`
	GCThreshold float64       `koanf:"gc_threshold" yaml:"gc_threshold"`
}

// SimulateSection configures the simulate command.
type SimulateSection struct {
	Key   string `koanf:"key" yaml:"key"`
	Steps int    `koanf:"steps" yaml:"steps"`

	// Rate limits saves per second. Zero means unlimited.
	Rate  float64 `koanf:"rate" yaml:"rate"`
	Burst int     `koanf:"burst" yaml:"burst"`

	// StepInterval advances the simulated clock between saves.
	StepInterval    time.Duration `koanf:"step_interval" yaml:"step_interval"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}
