package retention

// Extremum keeps the best value seen so far under a comparison and prunes
// history down to the entries holding that value.
//
// The tracked best lives in the policy instance and is updated as a side
// effect of IncludeNext.
type Extremum struct {
	extract Extractor
	better  func(candidate, best float64) bool

	best    float64
	hasBest bool
}

// NewExtremum creates an extremum policy. better reports whether candidate
// beats the current best.
func NewExtremum(extract Extractor, better func(candidate, best float64) bool) *Extremum {
	return &Extremum{extract: extract, better: better}
}

// Minimum keeps the entry with the lowest payload value of field.
func Minimum(field string) *Extremum {
	return NewExtremum(DataField(field), func(c, b float64) bool { return c < b })
}

// Maximum keeps the entry with the highest payload value of field.
func Maximum(field string) *Extremum {
	return NewExtremum(DataField(field), func(c, b float64) bool { return c > b })
}

// Best returns the tracked best value, if any.
func (p *Extremum) Best() (float64, bool) {
	return p.best, p.hasBest
}

func (p *Extremum) IncludeNext(entry *Entry, _ []Entry) bool {
	v, ok := p.extract(entry)
	if !ok || (p.hasBest && v == p.best) {
		return false
	}
	if !p.hasBest || p.better(v, p.best) {
		p.best = v
		p.hasBest = true
		return true
	}
	return false
}

func (p *Extremum) Cull(history []Entry) SerialSet {
	out := make(SerialSet)
	for i := range history {
		v, ok := p.extract(&history[i])
		if ok != p.hasBest || (ok && v != p.best) {
			out[history[i].Serial] = struct{}{}
		}
	}
	return out
}
