package retention

import "sort"

// Entry is one candidate or retained snapshot record.
type Entry struct {
	Serial    uint64  `json:"serial"`
	Run       uint32  `json:"run"`
	Filename  string  `json:"filename"`
	Fullpath  string  `json:"fullpath"`
	Timestamp float64 `json:"timestamp"`

	// Data is the snapshot payload, visible to predicates while a decision is
	// being made. It is never persisted with the history.
	Data map[string]any `json:"-"`
}

// Stripped returns a copy of the entry without its payload.
func (e Entry) Stripped() Entry {
	e.Data = nil
	return e
}

// SerialSet is a set of entry serials.
type SerialSet map[uint64]struct{}

// NewSerialSet creates a set holding the given serials.
func NewSerialSet(serials ...uint64) SerialSet {
	s := make(SerialSet, len(serials))
	for _, n := range serials {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether n is in the set. A nil set is empty.
func (s SerialSet) Has(n uint64) bool {
	_, ok := s[n]
	return ok
}

// Union returns a new set with the serials of both sets.
func (s SerialSet) Union(other SerialSet) SerialSet {
	out := make(SerialSet, len(s)+len(other))
	for n := range s {
		out[n] = struct{}{}
	}
	for n := range other {
		out[n] = struct{}{}
	}
	return out
}

// Intersect returns a new set with the serials present in both sets.
func (s SerialSet) Intersect(other SerialSet) SerialSet {
	out := make(SerialSet)
	for n := range s {
		if other.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

// Sorted returns the serials in ascending order.
func (s SerialSet) Sorted() []uint64 {
	out := make([]uint64, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Serials lists the serials of a history in order.
func Serials(history []Entry) []uint64 {
	out := make([]uint64, len(history))
	for i, e := range history {
		out[i] = e.Serial
	}
	return out
}
