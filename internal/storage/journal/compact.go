package journal

import (
	"fmt"
	"os"
	"path/filepath"
)

// Compact rewrites the journal at path keeping only the newest keep records
// and returns how many were dropped. The highest serial is always kept so
// LastSerial survives compaction. The journal must not be open for writing.
func Compact(path string, keep int) (int, error) {
	if keep < 1 {
		keep = 1
	}

	records, err := ReadAll(path)
	if err != nil {
		return 0, err
	}
	if len(records) <= keep {
		return 0, nil
	}

	kept := records[len(records)-keep:]
	if top, ok := highest(records); ok && !containsSerial(kept, top.Serial) {
		kept = append([]*Record{top}, kept[1:]...)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".compact-*")
	if err != nil {
		return 0, fmt.Errorf("journal: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write([]byte(Magic)); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("journal: write magic: %w", err)
	}
	for _, rec := range kept {
		frame, err := encodeFrame(rec)
		if err != nil {
			tmp.Close()
			return 0, err
		}
		if _, err := tmp.Write(frame); err != nil {
			tmp.Close()
			return 0, fmt.Errorf("journal: write: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("journal: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("journal: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("journal: rename: %w", err)
	}
	return len(records) - len(kept), nil
}

func highest(records []*Record) (*Record, bool) {
	var top *Record
	for _, rec := range records {
		if top == nil || rec.Serial > top.Serial {
			top = rec
		}
	}
	return top, top != nil
}

func containsSerial(records []*Record, serial uint64) bool {
	for _, rec := range records {
		if rec.Serial == serial {
			return true
		}
	}
	return false
}
