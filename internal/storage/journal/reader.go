package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Reader reads records from a journal file in order.
type Reader struct {
	file   *os.File
	reader *bufio.Reader

	// offset is the end of the last fully decoded frame.
	offset int64
}

// NewReader opens path and validates its magic header.
func NewReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{file: f, reader: bufio.NewReader(f)}
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r.reader, magic); err != nil {
		f.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: file too short", ErrInvalidMagic)
		}
		return nil, fmt.Errorf("journal: read magic: %w", err)
	}
	if string(magic) != Magic {
		f.Close()
		return nil, ErrInvalidMagic
	}
	r.offset = int64(len(Magic))
	return r, nil
}

// Read returns the next record, or io.EOF at the end of the log. A torn or
// corrupted frame also ends the log.
func (r *Reader) Read() (*Record, error) {
	var header [4]byte
	if _, err := io.ReadFull(r.reader, header[:]); err != nil {
		return nil, io.EOF
	}
	length := binary.BigEndian.Uint32(header[:])
	if length < 5 || length > maxFrameSize {
		return nil, io.EOF
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.reader, frame); err != nil {
		return nil, io.EOF
	}

	rec, err := decodeFrame(frame)
	if err != nil {
		return nil, io.EOF
	}
	r.offset += int64(len(header)) + int64(length)
	return rec, nil
}

// Offset returns the byte offset just past the last record read.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadAll returns every readable record in path. A missing file holds no
// records.
func ReadAll(path string) ([]*Record, error) {
	r, err := NewReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer r.Close()

	var out []*Record
	for {
		rec, err := r.Read()
		if err != nil {
			return out, nil
		}
		out = append(out, rec)
	}
}

// LastSerial returns the highest serial recorded in path. ok is false when
// the journal is missing or empty.
func LastSerial(path string) (serial uint64, ok bool, err error) {
	records, err := ReadAll(path)
	if err != nil {
		return 0, false, err
	}
	for _, rec := range records {
		if !ok || rec.Serial > serial {
			serial = rec.Serial
			ok = true
		}
	}
	return serial, ok, nil
}
