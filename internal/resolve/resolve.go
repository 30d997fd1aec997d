// Package resolve orders view descriptors so that every view is created after
// the views it depends on.
//
// The sort is layered: each iteration emits every view whose remaining
// dependencies are all satisfied. When an iteration finds no such view while
// views remain, the remainder is exactly the blocked subgraph and is reported
// in full.
package resolve

import (
	"sort"

	"github.com/pgviews/pgviews/internal/view"
)

// MissingPolicy decides what happens to dependencies on identities that are
// not part of the resolved set.
type MissingPolicy int

const (
	// MissingError reports dangling dependencies as an UnknownDependencyError
	MissingError MissingPolicy = iota
	// MissingBlock never satisfies a dangling dependency, so the dependent is
	// reported as part of a CyclicDependencyError
	MissingBlock
	// MissingIgnore drops dangling dependencies
	MissingIgnore
)

// Batch is a set of views whose dependencies were all satisfied at the same
// point of the sort. Views are sorted by identity for stable output only.
type Batch []*view.View

// Option configures a resolution
type Option func(*options)

type options struct {
	missing MissingPolicy
}

// WithMissingPolicy sets the dangling dependency policy
func WithMissingPolicy(p MissingPolicy) Option {
	return func(o *options) {
		o.missing = p
	}
}

// Resolve returns views in creation order
func Resolve(views []*view.View, opts ...Option) ([]*view.View, error) {
	batches, err := Batches(views, opts...)
	if err != nil {
		return nil, err
	}

	ordered := make([]*view.View, 0, len(views))
	for _, batch := range batches {
		ordered = append(ordered, batch...)
	}
	return ordered, nil
}

// Batches returns views grouped in resolution waves, in dependency order
func Batches(views []*view.View, opts ...Option) ([]Batch, error) {
	o := options{missing: MissingError}
	for _, opt := range opts {
		opt(&o)
	}

	byID := make(map[view.Identity]*view.View, len(views))
	for _, v := range views {
		if _, dup := byID[v.ID]; dup {
			continue
		}
		byID[v.ID] = v
	}

	if o.missing == MissingError {
		if missing := danglingDependencies(byID); len(missing) > 0 {
			return nil, &UnknownDependencyError{Missing: missing}
		}
	}

	// Working copy of the dependency sets; caller descriptors are never touched
	remaining := make(map[view.Identity]map[view.Identity]struct{}, len(byID))
	for id, v := range byID {
		deps := make(map[view.Identity]struct{}, len(v.DependsOn))
		for _, dep := range v.DependsOn {
			if _, known := byID[dep]; !known && o.missing == MissingIgnore {
				continue
			}
			deps[dep] = struct{}{}
		}
		remaining[id] = deps
	}

	var batches []Batch
	for len(remaining) > 0 {
		var ready []view.Identity
		for id, deps := range remaining {
			if len(deps) == 0 {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			return nil, newCyclicDependencyError(remaining)
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i] < ready[j] })

		batch := make(Batch, 0, len(ready))
		for _, id := range ready {
			delete(remaining, id)
			batch = append(batch, byID[id])
		}
		for _, deps := range remaining {
			for _, id := range ready {
				delete(deps, id)
			}
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

// danglingDependencies maps each view to the dependencies absent from the set
func danglingDependencies(byID map[view.Identity]*view.View) map[view.Identity][]view.Identity {
	missing := make(map[view.Identity][]view.Identity)
	for id, v := range byID {
		for _, dep := range v.DependsOn {
			if _, ok := byID[dep]; !ok {
				missing[id] = append(missing[id], dep)
			}
		}
	}
	for id := range missing {
		sortIdentities(missing[id])
	}
	return missing
}

func sortIdentities(ids []view.Identity) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
