package retention

import "errors"

// Culler is called once for every evicted entry, typically to remove the
// snapshot file backing it.
type Culler func(entry Entry) error

// Decision is the outcome of applying a policy to one candidate.
type Decision struct {
	// Accepted reports whether the candidate passed IncludeNext.
	Accepted bool
	// History is the new history. It is the input history when the
	// candidate was discarded.
	History []Entry
	// Evicted lists the entries removed by Cull, in history order.
	Evicted []Entry
	// Err joins the errors returned by the culler.
	Err error
}

// Applicator runs a policy against a running history.
type Applicator struct {
	policy Policy
	culler Culler
}

// NewApplicator creates an applicator. culler may be nil.
func NewApplicator(policy Policy, culler Culler) *Applicator {
	if policy == nil {
		policy = All()
	}
	return &Applicator{policy: policy, culler: culler}
}

// Policy returns the policy driven by the applicator.
func (a *Applicator) Policy() Policy {
	return a.policy
}

// Apply decides on entry. When accepted, the entry is appended, the policy
// culls the resulting history and the culler sees every evicted entry.
// The input slice is never modified.
func (a *Applicator) Apply(entry Entry, history []Entry) Decision {
	if !a.policy.IncludeNext(&entry, history) {
		return Decision{History: history}
	}

	candidate := make([]Entry, 0, len(history)+1)
	candidate = append(candidate, history...)
	candidate = append(candidate, entry)

	evict := a.policy.Cull(candidate)
	kept := make([]Entry, 0, len(candidate))
	var evicted []Entry
	var errs []error
	for _, e := range candidate {
		if !evict.Has(e.Serial) {
			kept = append(kept, e)
			continue
		}
		evicted = append(evicted, e)
		if a.culler != nil {
			if err := a.culler(e); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return Decision{
		Accepted: true,
		History:  kept,
		Evicted:  evicted,
		Err:      errors.Join(errs...),
	}
}

// Verdict reports whether the policy would keep entry, without culling or
// touching history. Stateful policies still update their state.
func (a *Applicator) Verdict(entry Entry, history []Entry) bool {
	return a.policy.IncludeNext(&entry, history)
}
