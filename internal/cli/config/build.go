package config

import (
	"io"

	"github.com/yndnr/snapkeep/internal/retention"
	"github.com/yndnr/snapkeep/internal/storage/catalog"
	"github.com/yndnr/snapkeep/internal/storage/serializer"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

// NewSerializer builds the configured serializer, sealed when a passphrase
// is set.
func (c *Config) NewSerializer() (serializer.Serializer, error) {
	s, err := serializer.ByName(c.Store.Serializer)
	if err != nil {
		return nil, err
	}
	if c.Store.Passphrase == "" {
		return s, nil
	}
	return serializer.Sealed(s, serializer.SealConfig{
		Passphrase: []byte(c.Store.Passphrase),
		Algorithm:  c.Store.SealAlgorithm,
	})
}

// NewPolicy builds a fresh retention policy tree.
func (c *Config) NewPolicy() (retention.Policy, error) {
	return c.Retention.Build()
}

// NewLogger builds a logger writing to w.
func (c *Config) NewLogger(w io.Writer) (logger.Logger, error) {
	return logger.New(logger.Config{
		Level:  c.Log.Level,
		Format: c.Log.Format,
		Output: w,
	})
}

// CatalogConfig returns the catalog settings for the base directory.
func (c *Config) CatalogConfig() catalog.Config {
	cc := catalog.DefaultConfig(c.Store.BaseDir)
	cc.GCInterval = c.Catalog.GCInterval
	if c.Catalog.GCThreshold > 0 {
		cc.GCThreshold = c.Catalog.GCThreshold
	}
	return cc
}
