package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yndnr/snapkeep/internal/retention"
)

var snapshotName = regexp.MustCompile(`^\d{9,}_\d{4}(-\d{2}){5}\.`)

// Report is the result of Verify or Repair.
type Report struct {
	Dir string `json:"dir"`

	// Dangling lists history entries whose snapshot file is missing.
	Dangling []retention.Entry `json:"dangling,omitempty"`

	// Orphans lists snapshot and temp files not referenced by history.
	Orphans []string `json:"orphans,omitempty"`

	// StaleLatest is set when latest does not resolve to the newest
	// retained snapshot.
	StaleLatest bool `json:"stale_latest"`

	Repaired bool `json:"repaired"`
}

// Clean reports whether no problem was found.
func (r *Report) Clean() bool {
	return len(r.Dangling) == 0 && len(r.Orphans) == 0 && !r.StaleLatest
}

// Verify checks the stream directory against its metadata without changing
// anything.
func (s *Store) Verify() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, _, _, err := s.inspectLocked()
	return rep, err
}

// Repair fixes what Verify reports: dangling entries are dropped from the
// history, orphan files are deleted and latest is re-pointed.
func (s *Store) Repair() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep, meta, persisted, err := s.inspectLocked()
	if err != nil || rep.Clean() {
		return rep, err
	}

	if len(rep.Dangling) > 0 {
		drop := retention.NewSerialSet(retention.Serials(rep.Dangling)...)
		kept := make([]retention.Entry, 0, len(meta.History))
		for _, e := range meta.History {
			if !drop.Has(e.Serial) {
				kept = append(kept, e)
			}
		}
		meta.History = kept
		if persisted {
			if err := writeMetadata(s.dir, meta); err != nil {
				return rep, err
			}
		}
		if s.meta != nil {
			s.meta.History = append([]retention.Entry(nil), kept...)
		}
	}

	var errs []error
	for _, name := range rep.Orphans {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("snapshot: remove orphan %s: %w", name, err))
		}
	}

	if rep.StaleLatest || len(rep.Dangling) > 0 {
		if err := s.repointLatest(meta.History); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return rep, err
	}
	rep.Repaired = true
	s.log.Info("snapshot stream repaired",
		"keyhash", s.keyhash,
		"dangling", len(rep.Dangling),
		"orphans", len(rep.Orphans),
		"stale_latest", rep.StaleLatest)
	return rep, nil
}

// inspectLocked compares the directory with the metadata. The returned
// metadata is a private copy; persisted reports whether it exists on disk.
func (s *Store) inspectLocked() (*Report, *Metadata, bool, error) {
	if s.keyhash == "" {
		return nil, nil, false, ErrNotConfigured
	}
	rep := &Report{Dir: s.dir}

	meta := s.meta.clone()
	persisted := true
	if meta == nil {
		var err error
		meta, err = ReadMetadata(s.dir)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			meta = &Metadata{Keyhash: s.keyhash, Key: s.key}
			persisted = false
		case err != nil:
			return nil, nil, false, err
		}
	}

	referenced := make(map[string]bool, len(meta.History))
	var newest *retention.Entry
	for i, e := range meta.History {
		referenced[e.Filename] = true
		_, err := os.Stat(filepath.Join(s.dir, e.Filename))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			rep.Dangling = append(rep.Dangling, e)
		case err != nil:
			return nil, nil, false, fmt.Errorf("snapshot: stat %s: %w", e.Filename, err)
		default:
			newest = &meta.History[i]
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, false, fmt.Errorf("snapshot: read %s: %w", s.dir, err)
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		switch {
		case snapshotName.MatchString(name) && !referenced[name]:
			rep.Orphans = append(rep.Orphans, name)
		case strings.HasPrefix(name, ".") && strings.Contains(name, ".tmp-"):
			rep.Orphans = append(rep.Orphans, name)
		}
	}
	sort.Strings(rep.Orphans)

	latest := s.latestPath()
	if newest == nil {
		if _, err := os.Lstat(latest); err == nil {
			rep.StaleLatest = true
		}
	} else {
		ok, err := latestResolvesTo(latest, filepath.Join(s.dir, newest.Filename))
		if err != nil {
			return nil, nil, false, fmt.Errorf("snapshot: inspect latest: %w", err)
		}
		rep.StaleLatest = !ok
	}

	return rep, meta, persisted, nil
}
