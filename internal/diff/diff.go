// Package diff classifies a new IFC snapshot against the open rows of a
// branch. It is pure: no storage access, no side effects, deterministic
// output ordering.
package diff

import "sort"

// Result partitions the union of both snapshots' GlobalIds into four
// disjoint, sorted sets.
type Result struct {
	Added     []string // in the new snapshot only
	Modified  []string // in both, content hash differs
	Deleted   []string // in the open rows only
	Unchanged []string // in both, same content hash
}

// Counts returns the cardinality of each set.
func (r *Result) Counts() (added, modified, deleted, unchanged int) {
	return len(r.Added), len(r.Modified), len(r.Deleted), len(r.Unchanged)
}

// ChangedOrNew returns added ∪ modified as a set.
func (r *Result) ChangedOrNew() map[string]bool {
	m := make(map[string]bool, len(r.Added)+len(r.Modified))
	for _, g := range r.Added {
		m[g] = true
	}
	for _, g := range r.Modified {
		m[g] = true
	}
	return m
}

// ToClose returns modified ∪ deleted, sorted: the GlobalIds whose open
// window must be closed at the new revision.
func (r *Result) ToClose() []string {
	out := make([]string, 0, len(r.Modified)+len(r.Deleted))
	out = append(out, r.Modified...)
	out = append(out, r.Deleted...)
	sort.Strings(out)
	return out
}

// Compute diffs the new snapshot (GlobalId -> content hash) against the
// currently-open rows of a branch (same shape). It never looks at any
// revision other than "currently open".
func Compute(open, next map[string]string) *Result {
	r := &Result{}
	for gid, hash := range next {
		prev, ok := open[gid]
		switch {
		case !ok:
			r.Added = append(r.Added, gid)
		case prev != hash:
			r.Modified = append(r.Modified, gid)
		default:
			r.Unchanged = append(r.Unchanged, gid)
		}
	}
	for gid := range open {
		if _, ok := next[gid]; !ok {
			r.Deleted = append(r.Deleted, gid)
		}
	}
	sort.Strings(r.Added)
	sort.Strings(r.Modified)
	sort.Strings(r.Deleted)
	sort.Strings(r.Unchanged)
	return r
}
