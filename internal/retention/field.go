package retention

import (
	"encoding/json"
	"math"
)

// Extractor reads a numeric value from an entry. The boolean is false when
// the value is absent or not a number.
type Extractor func(entry *Entry) (float64, bool)

// Basis names an entry attribute used as an ordering axis.
type Basis string

const (
	BasisTimestamp Basis = "timestamp"
	BasisSerial    Basis = "serial"
	BasisRun       Basis = "run"
)

// Valid reports whether b names a known attribute.
func (b Basis) Valid() bool {
	switch b {
	case BasisTimestamp, BasisSerial, BasisRun:
		return true
	}
	return false
}

func (b Basis) value(e *Entry) float64 {
	switch b {
	case BasisSerial:
		return float64(e.Serial)
	case BasisRun:
		return float64(e.Run)
	default:
		return e.Timestamp
	}
}

// Field extracts an entry attribute (serial, run, timestamp) or, for any
// other name, a numeric value from the entry payload.
func Field(name string) Extractor {
	if b := Basis(name); b.Valid() {
		return func(e *Entry) (float64, bool) {
			return b.value(e), true
		}
	}
	return DataField(name)
}

// DataField extracts a numeric value from the entry payload only.
func DataField(name string) Extractor {
	return func(e *Entry) (float64, bool) {
		if e == nil || e.Data == nil {
			return 0, false
		}
		v, ok := e.Data[name]
		if !ok {
			return 0, false
		}
		return toFloat(v)
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
