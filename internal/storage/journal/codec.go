package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"

	"github.com/oklog/ulid/v2"
)

// Magic opens every journal file.
const Magic = "SKJRNL\x01\x00"

const (
	// frameHeaderSize is length (4) + crc (4).
	frameHeaderSize = 8

	// maxFrameSize bounds a single record; anything larger is corruption.
	maxFrameSize = 16 << 20
)

type wirePayload struct {
	ID        string   `json:"id"`
	Timestamp int64    `json:"ts"`
	Serial    uint64   `json:"serial"`
	Run       uint32   `json:"run"`
	Filename  string   `json:"file,omitempty"`
	Evicted   []uint64 `json:"evicted,omitempty"`
}

func encodeFrame(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("journal: record is nil")
	}
	switch r.Type {
	case RecordAccepted, RecordDiscarded:
	default:
		return nil, ErrInvalidType
	}

	payload, err := json.Marshal(wirePayload{
		ID:        r.ID.String(),
		Timestamp: r.Timestamp,
		Serial:    r.Serial,
		Run:       r.Run,
		Filename:  r.Filename,
		Evicted:   r.Evicted,
	})
	if err != nil {
		return nil, fmt.Errorf("journal: marshal payload: %w", err)
	}

	body := make([]byte, 0, 1+len(payload))
	body = append(body, byte(r.Type))
	body = append(body, payload...)

	out := make([]byte, frameHeaderSize, frameHeaderSize+len(body))
	// Length = CRC(4) + Type(1) + Payload.
	binary.BigEndian.PutUint32(out[0:4], uint32(4+len(body)))
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

// decodeFrame decodes [crc32:4][type:1][payload...].
func decodeFrame(frame []byte) (*Record, error) {
	if len(frame) < 5 {
		return nil, ErrCorruptedRecord
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	body := frame[4:]
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, ErrChecksumMismatch
	}

	typ := RecordType(body[0])
	switch typ {
	case RecordAccepted, RecordDiscarded:
	default:
		return nil, ErrInvalidType
	}

	var p wirePayload
	if err := json.Unmarshal(body[1:], &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedRecord, err)
	}
	id, err := ulid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrCorruptedRecord, err)
	}

	return &Record{
		Type:      typ,
		ID:        id,
		Timestamp: p.Timestamp,
		Serial:    p.Serial,
		Run:       p.Run,
		Filename:  p.Filename,
		Evicted:   p.Evicted,
	}, nil
}
