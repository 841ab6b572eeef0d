package config

import (
	"time"

	"github.com/yndnr/snapkeep/internal/retention"
)

// Default configuration values.
const (
	DefaultBaseDir    = "snapshots"
	DefaultSerializer = "json"

	DefaultGCInterval  = 10 * time.Minute
	DefaultGCThreshold = 0.5

	DefaultSimulateKey     = "quadratic"
	DefaultSimulateSteps   = 100
	DefaultSimulateBurst   = 1
	DefaultStepInterval    = time.Second
	DefaultShutdownTimeout = 5 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultOutput    = "table"
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreSection{
			BaseDir:    DefaultBaseDir,
			Serializer: DefaultSerializer,
		},
		Catalog: CatalogSection{
			GCInterval:  DefaultGCInterval,
			GCThreshold: DefaultGCThreshold,
		},
		Retention: retention.Spec{Type: retention.TypeAll},
		Simulate: SimulateSection{
			Key:             DefaultSimulateKey,
			Steps:           DefaultSimulateSteps,
			Burst:           DefaultSimulateBurst,
			StepInterval:    DefaultStepInterval,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Output: DefaultOutput,
	}
}
