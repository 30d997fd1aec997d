package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgviews/pgviews/internal/view"
)

// CyclicDependencyError is returned when no remaining view can be resolved.
// Remaining maps every unresolved view to its still unsatisfied dependencies.
type CyclicDependencyError struct {
	Remaining map[view.Identity][]view.Identity
}

func newCyclicDependencyError(remaining map[view.Identity]map[view.Identity]struct{}) *CyclicDependencyError {
	residual := make(map[view.Identity][]view.Identity, len(remaining))
	for id, deps := range remaining {
		list := make([]view.Identity, 0, len(deps))
		for dep := range deps {
			list = append(list, dep)
		}
		sortIdentities(list)
		residual[id] = list
	}
	return &CyclicDependencyError{Remaining: residual}
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency exists amongst " + formatGraph(e.Remaining)
}

// UnknownDependencyError is returned when views depend on identities that are
// not part of the resolved set.
type UnknownDependencyError struct {
	Missing map[view.Identity][]view.Identity
}

func (e *UnknownDependencyError) Error() string {
	return "unknown dependencies " + formatGraph(e.Missing)
}

// formatGraph renders {a: [b, c], d: [e]} with keys sorted
func formatGraph(graph map[view.Identity][]view.Identity) string {
	keys := make([]view.Identity, 0, len(graph))
	for id := range graph {
		keys = append(keys, id)
	}
	sortIdentities(keys)

	parts := make([]string, 0, len(keys))
	for _, id := range keys {
		deps := make([]string, len(graph[id]))
		for i, dep := range graph[id] {
			deps[i] = string(dep)
		}
		sort.Strings(deps)
		parts = append(parts, fmt.Sprintf("%s: [%s]", id, strings.Join(deps, ", ")))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ParseMissingPolicy parses "error", "block" or "ignore"
func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return MissingError, nil
	case "block":
		return MissingBlock, nil
	case "ignore":
		return MissingIgnore, nil
	default:
		return MissingError, fmt.Errorf("invalid missing dependency policy %q (expected error, block or ignore)", s)
	}
}

func (p MissingPolicy) String() string {
	switch p {
	case MissingBlock:
		return "block"
	case MissingIgnore:
		return "ignore"
	default:
		return "error"
	}
}
