package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/snapkeep/internal/telemetry/logger"
)

// DirName is the catalog directory inside a base directory.
const DirName = ".catalog"

const recordPrefix = "stream/"

var (
	ErrNotFound = errors.New("catalog: record not found")
	ErrClosed   = errors.New("catalog: closed")
)

// Record summarizes one snapshot stream.
type Record struct {
	Keyhash  string `json:"keyhash"`
	Key      any    `json:"key"`
	Dir      string `json:"dir"`
	Serial   uint64 `json:"serial"`
	Runs     uint32 `json:"runs"`
	Retained int    `json:"retained"`
	Latest   string `json:"latest,omitempty"`

	// UpdatedAt is in Unix milliseconds.
	UpdatedAt int64 `json:"updated_at"`
}

// Config configures the catalog database.
type Config struct {
	Dir string

	// GCInterval enables a background value log GC loop when positive.
	GCInterval time.Duration

	// GCThreshold is the discard ratio passed to badger (0.0-1.0).
	GCThreshold float64

	SyncWrites bool

	// InMemory keeps the catalog in memory only. Dir is ignored.
	InMemory bool
}

// DefaultConfig returns the configuration for a catalog under baseDir.
func DefaultConfig(baseDir string) Config {
	return Config{
		Dir:         filepath.Join(baseDir, DirName),
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
		SyncWrites:  true,
	}
}

// Stats describes the catalog database.
type Stats struct {
	Records      int
	LSMSize      int64
	ValueLogSize int64
	TotalSize    int64

	// LastGC is in Unix milliseconds, zero if GC never ran.
	LastGC int64
}

// Catalog is a badger-backed stream index.
type Catalog struct {
	db     *badger.DB
	cfg    Config
	logger logger.Logger

	lastGC atomic.Int64
	closed atomic.Bool

	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
}

// Open opens or creates the catalog.
func Open(cfg Config, log logger.Logger) (*Catalog, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("catalog: dir is required")
	}
	if log == nil {
		log = logger.Default()
	}
	if cfg.GCThreshold <= 0 || cfg.GCThreshold >= 1 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: log.With("component", "catalog")}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}

	c := &Catalog{
		db:     db,
		cfg:    cfg,
		logger: log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go c.gcLoop()
	} else {
		close(c.doneCh)
	}

	log.Debug("catalog opened", "dir", cfg.Dir, "in_memory", cfg.InMemory)
	return c, nil
}

func recordKey(keyhash string) []byte {
	return []byte(recordPrefix + keyhash)
}

// Put inserts or replaces the record for rec.Keyhash.
func (c *Catalog) Put(_ context.Context, rec Record) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if rec.Keyhash == "" {
		return fmt.Errorf("catalog: keyhash is required")
	}
	if rec.UpdatedAt == 0 {
		rec.UpdatedAt = time.Now().UnixMilli()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("catalog: marshal record: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.Keyhash), value)
	})
}

// Get returns the record for keyhash.
func (c *Catalog) Get(_ context.Context, keyhash string) (*Record, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	var rec Record
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(keyhash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record for keyhash. Deleting a missing record is not
// an error.
func (c *Catalog) Delete(_ context.Context, keyhash string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(recordKey(keyhash))
	})
}

// List returns every record ordered by keyhash.
func (c *Catalog) List(ctx context.Context) ([]Record, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	var out []Record
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("catalog: decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyhash < out[j].Keyhash })
	return out, nil
}

// Prune deletes records whose key directory no longer exists and returns
// their keyhashes.
func (c *Catalog) Prune(ctx context.Context) ([]string, error) {
	records, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, rec := range records {
		if _, err := os.Stat(rec.Dir); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := c.Delete(ctx, rec.Keyhash); err != nil {
			return removed, err
		}
		removed = append(removed, rec.Keyhash)
	}
	if len(removed) > 0 {
		c.logger.Info("pruned catalog records", "count", len(removed))
	}
	return removed, nil
}

// GC runs badger value log GC until nothing is left to rewrite and returns
// the number of rewrites.
func (c *Catalog) GC(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if c.cfg.InMemory {
		return 0, nil
	}

	rewrites := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewrites, err
		}
		err := c.db.RunValueLogGC(c.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rewrites, fmt.Errorf("catalog: gc: %w", err)
		}
		rewrites++
	}
	c.lastGC.Store(time.Now().UnixMilli())
	c.logger.Debug("catalog gc completed", "rewrites", rewrites)
	return rewrites, nil
}

// Stats returns database sizes and the record count.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	count := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lsm, vlog := c.db.Size()
	return &Stats{
		Records:      count,
		LSMSize:      lsm,
		ValueLogSize: vlog,
		TotalSize:    lsm + vlog,
		LastGC:       c.lastGC.Load(),
	}, nil
}

// RegisterMetrics registers catalog gauges on reg. Values are read from the
// database at scrape time.
func (c *Catalog) RegisterMetrics(reg *prometheus.Registry) *Catalog {
	size := func(pick func(lsm, vlog int64) int64) func() float64 {
		return func() float64 {
			if c.closed.Load() {
				return 0
			}
			return float64(pick(c.db.Size()))
		}
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "snapkeep",
			Subsystem: "catalog",
			Name:      "lsm_size_bytes",
			Help:      "Catalog LSM tree size in bytes.",
		}, size(func(lsm, _ int64) int64 { return lsm })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "snapkeep",
			Subsystem: "catalog",
			Name:      "value_log_size_bytes",
			Help:      "Catalog value log size in bytes.",
		}, size(func(_, vlog int64) int64 { return vlog })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "snapkeep",
			Subsystem: "catalog",
			Name:      "last_gc_timestamp_seconds",
			Help:      "Unix time of the last catalog GC run.",
		}, func() float64 { return float64(c.lastGC.Load()) / 1000 }),
	)
	return c
}

// Close stops the GC loop and closes the database.
func (c *Catalog) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		<-c.doneCh
		if cerr := c.db.Close(); cerr != nil {
			err = fmt.Errorf("catalog: close db: %w", cerr)
		}
	})
	return err
}

func (c *Catalog) gcLoop() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := c.GC(ctx); err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Error("catalog auto gc failed", "error", err)
			}
			cancel()
		case <-c.stopCh:
			return
		}
	}
}

// badgerLogger adapts Logger to badger's logger interface. Badger is chatty
// at info level, so its info lines are logged at debug.
type badgerLogger struct {
	logger logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
