package serializer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Serializer converts a snapshot payload to and from bytes.
type Serializer interface {
	// Name is the short identifier used in configuration.
	Name() string

	// Extension appends the format extension to base.
	Extension(base string) string

	Encode(w io.Writer, v map[string]any) error
	Decode(r io.Reader) (map[string]any, error)
}

// ErrUnknownSerializer is returned by ByName.
var ErrUnknownSerializer = errors.New("serializer: unknown serializer")

// ByName resolves a plain serializer by name. Sealed serializers need key
// material and are built with Sealed.
func ByName(name string) (Serializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON(), nil
	case "yaml", "yml":
		return YAML(), nil
	case "msgpack", "messagepack":
		return MsgPack(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSerializer, name)
	}
}

// SaveFile encodes v to path atomically and returns the number of bytes
// written.
func SaveFile(path string, s Serializer, v map[string]any) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("serializer: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	cw := &countingWriter{w: tmp}
	if err := s.Encode(cw, v); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("serializer: encode %s: %w", s.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("serializer: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("serializer: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("serializer: rename: %w", err)
	}
	return cw.n, nil
}

// LoadFile decodes the file at path. Errors from opening the file are
// returned unwrapped by os, so callers can test for fs.ErrNotExist.
func LoadFile(path string, s Serializer) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := s.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("serializer: decode %s %s: %w", s.Name(), path, err)
	}
	if v == nil {
		v = make(map[string]any)
	}
	return v, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
