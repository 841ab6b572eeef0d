package journal

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RecordType is the outcome of a save attempt.
type RecordType uint8

const (
	RecordUnspecified RecordType = iota
	RecordAccepted
	RecordDiscarded
)

func (t RecordType) String() string {
	switch t {
	case RecordAccepted:
		return "accepted"
	case RecordDiscarded:
		return "discarded"
	default:
		return "unspecified"
	}
}

// Errors for journal records.
var (
	ErrCorruptedRecord  = errors.New("journal: corrupted record")
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")
	ErrInvalidType      = errors.New("journal: invalid record type")
	ErrInvalidMagic     = errors.New("journal: invalid magic bytes")
)

// Record describes one save attempt.
type Record struct {
	Type RecordType
	ID   ulid.ULID

	// Timestamp is in Unix milliseconds.
	Timestamp int64
	Serial    uint64
	Run       uint32
	Filename  string

	// Evicted lists the serials culled by an accepted attempt.
	Evicted []uint64
}

// Time returns the record timestamp.
func (r *Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// NewAccepted creates a record for a retained snapshot.
func NewAccepted(serial uint64, run uint32, filename string, evicted []uint64, now time.Time) *Record {
	return &Record{
		Type:      RecordAccepted,
		ID:        newID(now),
		Timestamp: now.UnixMilli(),
		Serial:    serial,
		Run:       run,
		Filename:  filename,
		Evicted:   evicted,
	}
}

// NewDiscarded creates a record for an attempt the policy rejected.
func NewDiscarded(serial uint64, run uint32, filename string, now time.Time) *Record {
	return &Record{
		Type:      RecordDiscarded,
		ID:        newID(now),
		Timestamp: now.UnixMilli(),
		Serial:    serial,
		Run:       run,
		Filename:  filename,
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID returns a ULID that sorts after every ID previously issued in this
// process for the same millisecond.
func newID(now time.Time) ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		// Monotonic entropy overflowed within one millisecond.
		return ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	}
	return id
}
