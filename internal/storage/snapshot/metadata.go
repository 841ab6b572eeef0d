package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yndnr/snapkeep/internal/retention"
)

// MetadataFile is the metadata file name inside a stream directory.
const MetadataFile = "metadata.json"

// Metadata is the persisted state of a stream.
type Metadata struct {
	Serial  uint64            `json:"serial"`
	NumRuns uint32            `json:"num_runs"`
	Keyhash string            `json:"keyhash"`
	Key     any               `json:"key"`
	History []retention.Entry `json:"history"`
}

func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	c.History = append([]retention.Entry(nil), m.History...)
	return &c
}

// ReadMetadata reads dir/metadata.json. A missing file is reported with an
// error matching fs.ErrNotExist.
func ReadMetadata(dir string) (*Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("snapshot: parse %s: %w", path, err)
	}
	if m.History == nil {
		m.History = []retention.Entry{}
	}
	return &m, nil
}

func writeMetadata(dir string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, MetadataFile), data)
}

// writeFileAtomic writes data to a temp file in the same directory, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("snapshot: sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("snapshot: close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("snapshot: rename %s: %w", path, err)
	}
	return nil
}
