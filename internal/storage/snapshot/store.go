package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yndnr/snapkeep/internal/retention"
	"github.com/yndnr/snapkeep/internal/storage/catalog"
	"github.com/yndnr/snapkeep/internal/storage/journal"
	"github.com/yndnr/snapkeep/internal/storage/memory"
	"github.com/yndnr/snapkeep/internal/storage/serializer"
	"github.com/yndnr/snapkeep/internal/telemetry/logger"
	"github.com/yndnr/snapkeep/internal/telemetry/metric"
)

// TimeLayout is the timestamp layout used in snapshot file names.
const TimeLayout = "2006-01-02-15-04-05"

// Config holds the stream settings. Zero fields leave the current value
// unchanged.
type Config struct {
	Key        any
	Serializer serializer.Serializer
	Policy     retention.Policy
	BaseDir    string
}

// SaveResult describes one Save call.
type SaveResult struct {
	// Entry is the candidate, without its payload.
	Entry retention.Entry

	Accepted bool

	// Written is false when the candidate was discarded, or accepted and
	// then evicted by its own cull.
	Written bool

	// Evicted lists the serials culled by this save.
	Evicted []uint64

	// Bytes is the size of the written snapshot file.
	Bytes int64

	// LatestMethod is how the latest pointer was created: symlink,
	// hardlink or copy.
	LatestMethod string
}

// Store keeps the working values of one stream and snapshots them on Save.
// It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	key     any
	keyhash string
	baseDir string
	dir     string
	ser     serializer.Serializer
	policy  retention.Policy

	values *memory.Values
	loaded bool
	meta   *Metadata

	journaled bool
	journal   *journal.Writer
	catalog   Indexer
	metrics   *metric.Metrics
	log       logger.Logger
	now       func() time.Time
}

// New creates an unconfigured store using JSON files under the current
// directory and a policy that keeps everything.
func New(opts ...Option) *Store {
	s := &Store{
		baseDir: ".",
		ser:     serializer.JSON(),
		policy:  retention.All(),
		values:  memory.New(),
		log:     logger.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure applies cfg. It fails with ErrConfigureAfterLoad once the store
// has loaded or saved.
func (s *Store) Configure(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded || s.meta != nil {
		return ErrConfigureAfterLoad
	}

	if cfg.Key != nil {
		hash, err := KeyHash(cfg.Key)
		if err != nil {
			return err
		}
		s.key = cfg.Key
		s.keyhash = hash
	}
	if cfg.Serializer != nil {
		s.ser = cfg.Serializer
	}
	if cfg.Policy != nil {
		s.policy = cfg.Policy
	}
	if cfg.BaseDir != "" {
		s.baseDir = cfg.BaseDir
	}
	if s.keyhash != "" {
		s.dir = filepath.Join(s.baseDir, s.keyhash)
	}
	return nil
}

// Key returns the configured key.
func (s *Store) Key() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Keyhash returns the configured key hash, or "" before a key is set.
func (s *Store) Keyhash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyhash
}

// Dir returns the stream directory, or "" before a key is set.
func (s *Store) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// Serializer returns the configured serializer.
func (s *Store) Serializer() serializer.Serializer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ser
}

// LatestPath returns the latest pointer path of the stream.
func (s *Store) LatestPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestPath()
}

func (s *Store) latestPath() string {
	return LatestPath(s.dir, s.ser)
}

// History returns a copy of the retained entries. It is empty until the
// first Save.
func (s *Store) History() []retention.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return nil
	}
	return append([]retention.Entry(nil), s.meta.History...)
}

// Serial returns the next serial to be assigned.
func (s *Store) Serial() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return 0
	}
	return s.meta.Serial
}

// Runs returns the run counter of the current process.
func (s *Store) Runs() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return 0
	}
	return s.meta.NumRuns
}

// Metadata returns a copy of the in-memory metadata, or nil before the
// first Save.
func (s *Store) Metadata() *Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.clone()
}

// Load reads the latest snapshot into the working values. Without force an
// already loaded store is left untouched. A stream without snapshots loads
// as an empty map.
func (s *Store) Load(force bool) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(force); err != nil {
		return nil, err
	}
	return s.values.Snapshot(), nil
}

func (s *Store) loadLocked(force bool) error {
	if s.keyhash == "" {
		return ErrNotConfigured
	}
	if s.loaded && !force {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create %s: %w", s.dir, err)
	}

	latest := s.latestPath()
	data, err := serializer.LoadFile(latest, s.ser)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = map[string]any{}
	case err != nil:
		return fmt.Errorf("snapshot: load %s: %w", latest, err)
	}

	s.values.Replace(data)
	s.loaded = true
	s.log.Debug("snapshot values loaded", "keyhash", s.keyhash, "values", len(data))
	return nil
}

// Get returns a working value.
func (s *Store) Get(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(false); err != nil {
		return nil, err
	}
	v, ok := s.values.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrValueNotFound, name)
	}
	return v, nil
}

// Set stores a working value. It is persisted by the next Save.
func (s *Store) Set(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(false); err != nil {
		return err
	}
	s.values.Set(name, value)
	return nil
}

// Delete removes a working value and reports whether it existed.
func (s *Store) Delete(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(false); err != nil {
		return false, err
	}
	return s.values.Delete(name), nil
}

// LoadOrInit returns the value stored under name, storing def first when
// there is none.
func (s *Store) LoadOrInit(name string, def any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(false); err != nil {
		return nil, err
	}
	return s.values.LoadOrInit(name, def), nil
}

// Values returns a shallow copy of the working values.
func (s *Store) Values() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(false); err != nil {
		return nil, err
	}
	return s.values.Snapshot(), nil
}

// initMetadataLocked reads or creates the stream metadata once per process.
// Each process counts as a new run.
func (s *Store) initMetadataLocked() error {
	if s.meta != nil {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create %s: %w", s.dir, err)
	}

	meta, err := ReadMetadata(s.dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		meta = &Metadata{
			NumRuns: 1,
			Keyhash: s.keyhash,
			Key:     s.key,
			History: []retention.Entry{},
		}
		if err := writeMetadata(s.dir, meta); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		meta.NumRuns++
	}

	if s.journaled {
		path := filepath.Join(s.dir, journal.FileName)
		last, ok, err := journal.LastSerial(path)
		if err != nil {
			return fmt.Errorf("snapshot: read journal: %w", err)
		}
		if ok && last+1 > meta.Serial {
			s.log.Info("serial resumed from journal", "keyhash", s.keyhash, "from", meta.Serial, "to", last+1)
			meta.Serial = last + 1
		}
		w, err := journal.Open(path)
		if err != nil {
			return fmt.Errorf("snapshot: open journal: %w", err)
		}
		s.journal = w
	}

	s.meta = meta
	return nil
}

// Save offers the current values to the retention policy and, when they
// are accepted, writes them as a new snapshot. Files evicted by the policy
// are removed after the metadata is persisted; failures to remove them are
// returned joined together with a non-nil result.
func (s *Store) Save() (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.saveLocked()
	switch {
	case res != nil && res.Accepted:
		s.metrics.ObserveSave(metric.OutcomeAccepted, time.Since(start))
	case err != nil:
		s.metrics.ObserveSave(metric.OutcomeError, time.Since(start))
	default:
		s.metrics.ObserveSave(metric.OutcomeDiscarded, time.Since(start))
	}
	return res, err
}

func (s *Store) saveLocked() (*SaveResult, error) {
	if s.keyhash == "" {
		return nil, ErrNotConfigured
	}
	if err := s.loadLocked(false); err != nil {
		return nil, err
	}
	if err := s.initMetadataLocked(); err != nil {
		return nil, err
	}

	meta := s.meta
	now := s.now()
	filename := s.ser.Extension(fmt.Sprintf("%09d_%s", meta.Serial, now.Format(TimeLayout)))
	path := filepath.Join(s.dir, filename)
	fullpath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve %s: %w", path, err)
	}

	entry := retention.Entry{
		Serial:    meta.Serial,
		Run:       meta.NumRuns,
		Filename:  filename,
		Fullpath:  fullpath,
		Timestamp: float64(now.UnixNano()) / 1e9,
		Data:      s.values.Snapshot(),
	}
	meta.Serial++

	var queued []retention.Entry
	app := retention.NewApplicator(s.policy, func(e retention.Entry) error {
		queued = append(queued, e)
		return nil
	})
	decision := app.Apply(entry, meta.History)

	log := s.log.With("keyhash", s.keyhash, "serial", entry.Serial, "run", entry.Run)
	res := &SaveResult{Entry: entry.Stripped(), Accepted: decision.Accepted}

	if !decision.Accepted {
		log.Debug("snapshot discarded")
		s.appendJournal(log, journal.NewDiscarded(entry.Serial, entry.Run, filename, now))
		return res, nil
	}

	selfEvicted := false
	for _, e := range decision.Evicted {
		res.Evicted = append(res.Evicted, e.Serial)
		if e.Serial == entry.Serial {
			selfEvicted = true
		}
	}

	history := make([]retention.Entry, 0, len(decision.History))
	for _, e := range decision.History {
		history = append(history, e.Stripped())
	}

	latest := s.latestPath()
	if selfEvicted {
		if err := s.repointLatest(history); err != nil {
			return nil, err
		}
	} else {
		n, err := serializer.SaveFile(path, s.ser, entry.Data)
		if err != nil {
			return nil, fmt.Errorf("snapshot: write %s: %w", filename, err)
		}
		res.Bytes = n
		res.Written = true

		method, err := pointLatest(latest, path)
		if err != nil {
			return nil, err
		}
		res.LatestMethod = method
	}

	next := *meta
	next.History = history
	if err := writeMetadata(s.dir, &next); err != nil {
		s.rollbackSave(log, res, path)
		return nil, err
	}
	meta.History = history

	var errs []error
	for _, e := range queued {
		if e.Serial == entry.Serial {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("snapshot: cull %s: %w", e.Filename, err))
		}
	}
	if len(res.Evicted) > 0 {
		log.Info("snapshots culled", "serials", res.Evicted)
	}
	log.Debug("snapshot accepted", "file", filename, "bytes", res.Bytes, "retained", len(history))

	s.metrics.ObserveCulled(len(res.Evicted))
	s.metrics.SetHistoryEntries(len(history))
	if res.Written {
		s.metrics.SetSnapshotBytes(res.Bytes)
	}

	s.appendJournal(log, journal.NewAccepted(entry.Serial, entry.Run, filename, res.Evicted, now))
	s.updateCatalog(log, now)

	return res, errors.Join(errs...)
}

// rollbackSave undoes the file changes of a save whose metadata could not
// be written, so the files on disk keep matching the previous history.
func (s *Store) rollbackSave(log logger.Logger, res *SaveResult, path string) {
	if res.Written {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("remove unrecorded snapshot failed", "file", path, "error", err)
		}
	}
	if err := s.repointLatest(s.meta.History); err != nil {
		log.Warn("restore latest pointer failed", "error", err)
	}
}

// repointLatest points latest at the newest retained entry, or removes it
// when nothing is retained.
func (s *Store) repointLatest(history []retention.Entry) error {
	latest := s.latestPath()
	if len(history) == 0 {
		return removeLatest(latest)
	}
	_, err := pointLatest(latest, filepath.Join(s.dir, history[len(history)-1].Filename))
	return err
}

func (s *Store) appendJournal(log logger.Logger, rec *journal.Record) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Append(rec); err != nil {
		log.Warn("journal append failed", "error", err)
	}
}

func (s *Store) updateCatalog(log logger.Logger, now time.Time) {
	if s.catalog == nil {
		return
	}

	dir, err := filepath.Abs(s.dir)
	if err != nil {
		dir = s.dir
	}
	rec := catalog.Record{
		Keyhash:   s.keyhash,
		Key:       s.key,
		Dir:       dir,
		Serial:    s.meta.Serial,
		Runs:      s.meta.NumRuns,
		Retained:  len(s.meta.History),
		UpdatedAt: now.UnixMilli(),
	}
	if n := len(s.meta.History); n > 0 {
		rec.Latest = s.meta.History[n-1].Filename
	}
	if err := s.catalog.Put(context.Background(), rec); err != nil {
		log.Warn("catalog update failed", "error", err)
	}
}

// Close releases the journal. The store can still be read afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
