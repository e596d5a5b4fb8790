package record

import (
	"errors"
	"fmt"
)

// ErrDependencyMissing is returned by Build when a process declares a
// dependency id that does not resolve to any configured record.
var ErrDependencyMissing = errors.New("dependency missing")

// ErrSelfDependency is returned by Build when a process names itself as
// a dependency.
var ErrSelfDependency = errors.New("self dependency")

// ErrDuplicateID is returned by Build when two records share an id.
var ErrDuplicateID = errors.New("duplicate id")

// Graph owns every Record built from a configuration and preserves
// configuration order, which is the tie-break the scheduler uses among
// independent roots.
type Graph struct {
	records []*Record
}

// Build materializes a Graph from specs in two passes: pass 1 creates one
// Record per id, pass 2 resolves each Depends entry to a parent reference
// and installs the symmetric child edge. An id that fails to resolve
// aborts with ErrDependencyMissing; a self-reference aborts with
// ErrSelfDependency. Cycles are not rejected here — by construction they
// simply leave the affected records permanently non-runnable.
func Build(specs []Spec) (*Graph, error) {
	g := &Graph{records: make([]*Record, 0, len(specs))}

	seen := make(map[string]*Record, len(specs))
	for _, s := range specs {
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, s.ID)
		}
		r := newRecord(s)
		seen[s.ID] = r
		g.records = append(g.records, r)
	}

	for i, s := range specs {
		child := g.records[i]
		for _, dep := range s.Depends {
			if dep == s.ID {
				return nil, fmt.Errorf("%w: %s", ErrSelfDependency, s.ID)
			}
			parent, ok := seen[dep]
			if !ok {
				return nil, fmt.Errorf("%w: %s depends on unknown id %s", ErrDependencyMissing, s.ID, dep)
			}
			addParent(child, parent)
		}
	}

	return g, nil
}

// Records returns every record in configuration order.
func (g *Graph) Records() []*Record {
	out := make([]*Record, len(g.records))
	copy(out, g.records)
	return out
}

// Find is deterministic and O(#procs), as required: it scans records in
// configuration order and returns the first (only, ids being unique)
// match.
func (g *Graph) Find(id string) *Record {
	for _, r := range g.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}
