// Package retention decides which snapshots of a checkpoint stream are kept.
//
// A Policy answers two questions for every save attempt:
//
//   - IncludeNext: should the candidate entry be kept at all?
//   - Cull: given the history including the accepted candidate, which
//     serials should be evicted?
//
// Policies compose into a tree with And and Or:
//
//	And(a, b)  accept if both accept, evict if either wants an entry gone
//	Or(a, b)   accept if either accepts, evict only if both agree
//
// Some policies (Extremum) carry mutable state across calls. The same policy
// instance must be reused for every save of a stream; a fresh instance has no
// memory of earlier decisions.
//
// The Applicator runs one policy against a running history and reports
// evicted entries to a Culler so their backing files can be removed.
package retention
