package snapshot

import (
	"context"
	"time"

	"github.com/yndnr/snapkeep/internal/storage/catalog"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

// Indexer receives a summary of the stream after every accepted save.
// *catalog.Catalog implements it.
type Indexer interface {
	Put(ctx context.Context, rec catalog.Record) error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records save outcomes on m.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithJournal appends every save decision to the stream's journal.log and
// resumes the serial counter from it, so discarded serials are not reused
// across runs.
func WithJournal() Option {
	return func(s *Store) { s.journaled = true }
}

// WithCatalog updates idx after every accepted save.
func WithCatalog(idx Indexer) Option {
	return func(s *Store) { s.catalog = idx }
}

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
