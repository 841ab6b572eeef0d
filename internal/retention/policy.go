package retention

// Policy decides whether a candidate entry is kept and which retained
// entries are evicted.
type Policy interface {
	// IncludeNext reports whether entry should be appended to history.
	IncludeNext(entry *Entry, history []Entry) bool

	// Cull returns the serials to evict. history already contains the
	// entry that was just accepted.
	Cull(history []Entry) SerialSet
}

type always struct{}

// All keeps every snapshot and never evicts.
func All() Policy {
	return always{}
}

func (always) IncludeNext(*Entry, []Entry) bool { return true }
func (always) Cull([]Entry) SerialSet { return nil }

// intersection keeps an entry only when both sides keep it. Either side may
// evict.
type intersection struct {
	a, b Policy
}

// union keeps an entry when either side keeps it. Eviction needs both sides
// to agree.
type union struct {
	a, b Policy
}

// And combines policies so that a candidate is kept only when every policy
// accepts it, and an entry is evicted as soon as any policy culls it.
// Additional policies are folded from the left.
func And(a, b Policy, more ...Policy) Policy {
	p := Policy(&intersection{a: a, b: b})
	for _, m := range more {
		p = &intersection{a: p, b: m}
	}
	return p
}

// Or combines policies so that a candidate is kept when any policy accepts
// it, and an entry is evicted only when every policy culls it.
// Additional policies are folded from the left.
func Or(a, b Policy, more ...Policy) Policy {
	p := Policy(&union{a: a, b: b})
	for _, m := range more {
		p = &union{a: p, b: m}
	}
	return p
}

func (p *intersection) IncludeNext(entry *Entry, history []Entry) bool {
	return p.a.IncludeNext(entry, history) && p.b.IncludeNext(entry, history)
}

func (p *intersection) Cull(history []Entry) SerialSet {
	return p.a.Cull(history).Union(p.b.Cull(history))
}

func (p *union) IncludeNext(entry *Entry, history []Entry) bool {
	return p.a.IncludeNext(entry, history) || p.b.IncludeNext(entry, history)
}

func (p *union) Cull(history []Entry) SerialSet {
	return p.a.Cull(history).Intersect(p.b.Cull(history))
}
