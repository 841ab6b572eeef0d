package retention

import "time"

type serialPolicy struct {
	numbers SerialSet
}

// Serial keeps exactly the listed serials.
func Serial(numbers ...uint64) Policy {
	return &serialPolicy{numbers: NewSerialSet(numbers...)}
}

func (p *serialPolicy) IncludeNext(entry *Entry, _ []Entry) bool {
	return p.numbers.Has(entry.Serial)
}

func (p *serialPolicy) Cull([]Entry) SerialSet { return nil }

type moduloPolicy struct {
	interval uint64
	residue  uint64
}

// Every keeps serials that are multiples of interval.
func Every(interval uint64) Policy {
	return EveryOffset(interval, 0)
}

// EveryOffset keeps serials congruent to offset modulo interval. Negative
// offsets count back from the interval, so EveryOffset(17, -1) keeps
// 16, 33, 50, ...
//
// EveryOffset panics if interval is zero.
func EveryOffset(interval uint64, offset int64) Policy {
	if interval == 0 {
		panic("retention: interval must be positive")
	}
	var residue uint64
	if offset >= 0 {
		residue = uint64(offset) % interval
	} else {
		// -(offset+1) does not overflow for math.MinInt64.
		back := (uint64(-(offset+1)) + 1) % interval
		residue = (interval - back) % interval
	}
	return &moduloPolicy{interval: interval, residue: residue}
}

func (p *moduloPolicy) IncludeNext(entry *Entry, _ []Entry) bool {
	return entry.Serial%p.interval == p.residue
}

func (p *moduloPolicy) Cull([]Entry) SerialSet { return nil }

type throttlePolicy struct {
	delta time.Duration
}

// Throttle keeps a candidate only if at least delta has elapsed since the
// last retained entry, measured on entry timestamps.
func Throttle(delta time.Duration) Policy {
	return &throttlePolicy{delta: delta}
}

func (p *throttlePolicy) IncludeNext(entry *Entry, history []Entry) bool {
	if len(history) == 0 {
		return true
	}
	last := history[len(history)-1]
	return entry.Timestamp-last.Timestamp >= p.delta.Seconds()
}

func (p *throttlePolicy) Cull([]Entry) SerialSet { return nil }
