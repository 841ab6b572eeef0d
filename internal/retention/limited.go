package retention

// missingNeighborBonus stands in for the spacing to a neighbor that does not
// exist, so the first and last entries are the last to go.
const missingNeighborBonus = 100

// Limited keeps at most a fixed number of entries, evicting those that add
// the least spacing along the basis axis.
type Limited struct {
	max   int
	basis Basis
}

// AtMost keeps at most max entries, spaced by timestamp.
func AtMost(max int) *Limited {
	return AtMostBy(max, BasisTimestamp)
}

// AtMostBy keeps at most max entries, spaced along basis. Unknown bases fall
// back to timestamp.
func AtMostBy(max int, basis Basis) *Limited {
	if !basis.Valid() {
		basis = BasisTimestamp
	}
	if max < 0 {
		max = 0
	}
	return &Limited{max: max, basis: basis}
}

func (p *Limited) IncludeNext(*Entry, []Entry) bool { return true }

func (p *Limited) Cull(history []Entry) SerialSet {
	excess := len(history) - p.max
	if excess <= 0 {
		return nil
	}

	values := make([]float64, len(history))
	serials := make([]uint64, len(history))
	for i := range history {
		values[i] = p.basis.value(&history[i])
		serials[i] = history[i].Serial
	}

	out := make(SerialSet, excess)
	for ; excess > 0; excess-- {
		worst := 0
		worstScore := desirability(values, 0)
		for i := 1; i < len(values); i++ {
			// Ties keep the earliest index, which also orders by serial.
			if score := desirability(values, i); score < worstScore {
				worst, worstScore = i, score
			}
		}
		out[serials[worst]] = struct{}{}
		values = append(values[:worst], values[worst+1:]...)
		serials = append(serials[:worst], serials[worst+1:]...)
	}
	return out
}

// desirability is the spacing an entry contributes to its neighbors.
func desirability(values []float64, i int) float64 {
	var score float64
	if i > 0 {
		score += values[i] - values[i-1]
	} else {
		score += missingNeighborBonus
	}
	if i < len(values)-1 {
		score += values[i+1] - values[i]
	} else {
		score += missingNeighborBonus
	}
	return score
}
