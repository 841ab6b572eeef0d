package journal

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// FileName is the journal file name inside a key directory.
const FileName = "journal.log"

const defaultFilePerm = 0o600

// Writer appends records to a journal file. Every append is synced.
type Writer struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// Open opens or creates the journal at path. A torn tail left by a crash is
// truncated so new records stay readable.
func Open(path string) (*Writer, error) {
	end, err := validEnd(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, defaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	if end == 0 {
		if err := f.Truncate(0); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: truncate: %w", err)
		}
		if _, err := f.WriteAt([]byte(Magic), 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("journal: write magic: %w", err)
		}
		end = int64(len(Magic))
	} else if err := f.Truncate(end); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: truncate torn tail: %w", err)
	}

	if _, err := f.Seek(end, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: seek: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("journal: sync: %w", err)
	}
	return &Writer{path: path, file: f}, nil
}

// validEnd returns the offset after the last good frame, or 0 when the file
// is missing or empty.
func validEnd(path string) (int64, error) {
	r, err := NewReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		if errors.Is(err, ErrInvalidMagic) {
			info, statErr := os.Stat(path)
			if statErr == nil && info.Size() < int64(len(Magic)) {
				// A crash while writing the header.
				return 0, nil
			}
		}
		return 0, err
	}
	defer r.Close()

	for {
		if _, err := r.Read(); err != nil {
			return r.Offset(), nil
		}
	}
}

// Path returns the journal file path.
func (w *Writer) Path() string {
	return w.path
}

// Append writes and syncs one record.
func (w *Writer) Append(rec *Record) error {
	frame, err := encodeFrame(rec)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("journal: writer is closed")
	}
	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("journal: sync: %w", err)
	}
	return nil
}

// Close closes the journal file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}
