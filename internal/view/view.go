// Package view defines the descriptor of a managed database view and the SQL
// issued around its opaque creation statement.
package view

import (
	"fmt"
	"sort"
	"strings"
)

// Identity is the stable key of a view across a rebuild run.
// Equality of descriptors is equality of their identities.
type Identity string

// Statement is an opaque SQL statement with its bound parameters
type Statement struct {
	SQL    string
	Params []any
}

// Docs holds the human-written documentation of a view
type Docs struct {
	Description string
	// Fields maps a column name to its description
	Fields map[string]string
	// SchemaQuery overrides the query used to introspect the view's columns.
	// It must return (name, type) rows.
	SchemaQuery *Statement
}

// View describes one database view to create inside the managed namespace.
type View struct {
	ID           Identity
	Name         string
	Database     string
	DependsOn    []Identity
	Create       Statement
	Hidden       bool
	Document     bool
	Materialized bool
	Docs         Docs
}

// String returns the identity, falling back to the name
func (v *View) String() string {
	if v.ID != "" {
		return string(v.ID)
	}
	return v.Name
}

// DuplicateNameError is returned when two distinct views of one batch share a name
type DuplicateNameError struct {
	Name       string
	Identities []Identity
}

func (e *DuplicateNameError) Error() string {
	ids := make([]string, len(e.Identities))
	for i, id := range e.Identities {
		ids[i] = string(id)
	}
	return fmt.Sprintf("view name %q is used by more than one view: %s", e.Name, strings.Join(ids, ", "))
}

// Validate checks that every view has an identity and a name, and that names
// are unique among distinct identities.
func Validate(views []*View) error {
	byName := make(map[string][]Identity)
	seen := make(map[Identity]bool)
	var names []string

	for _, v := range views {
		if v == nil {
			return fmt.Errorf("nil view descriptor")
		}
		if v.ID == "" {
			return fmt.Errorf("view %q has an empty identity", v.Name)
		}
		if v.Name == "" {
			return fmt.Errorf("view %s has an empty name", v.ID)
		}
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		if _, ok := byName[v.Name]; !ok {
			names = append(names, v.Name)
		}
		byName[v.Name] = append(byName[v.Name], v.ID)
	}

	sort.Strings(names)
	for _, name := range names {
		if ids := byName[name]; len(ids) > 1 {
			return &DuplicateNameError{Name: name, Identities: ids}
		}
	}
	return nil
}
