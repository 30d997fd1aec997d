// Package sqlcheck inspects view creation statements with the PostgreSQL parser.
package sqlcheck

import (
	"encoding/json"
	"fmt"
	"sort"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// Relation is a possibly schema-qualified relation name
type Relation struct {
	Schema string
	Name   string
}

func (r Relation) String() string {
	if r.Schema == "" {
		return r.Name
	}
	return r.Schema + "." + r.Name
}

// Info describes a parsed CREATE [MATERIALIZED] VIEW statement
type Info struct {
	Target       Relation
	Materialized bool
	// References lists every relation the view body reads from, deduplicated
	// and sorted. CTE names appear here as unqualified relations.
	References []Relation
	// Indexes names the indexes created on the view after its definition
	Indexes []string
	// UniqueIndex is set when one of those indexes is unique
	UniqueIndex bool
}

// Inspect parses a CREATE VIEW or CREATE MATERIALIZED VIEW statement. It may
// be followed by CREATE INDEX statements on the created relation.
func Inspect(sql string) (*Info, error) {
	result, err := pg_query.Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("failed to parse view statement: %w", err)
	}
	if len(result.Stmts) == 0 {
		return nil, fmt.Errorf("expected CREATE VIEW or CREATE MATERIALIZED VIEW statement, found none")
	}

	info := &Info{}
	stmt := result.Stmts[0].Stmt
	switch {
	case stmt.GetViewStmt() != nil:
		rel := stmt.GetViewStmt().View
		info.Target = Relation{Schema: rel.Schemaname, Name: rel.Relname}
	case stmt.GetCreateTableAsStmt() != nil:
		ctas := stmt.GetCreateTableAsStmt()
		if ctas.Objtype != pg_query.ObjectType_OBJECT_MATVIEW {
			return nil, fmt.Errorf("CREATE TABLE AS is not a view definition")
		}
		rel := ctas.Into.Rel
		info.Target = Relation{Schema: rel.Schemaname, Name: rel.Relname}
		info.Materialized = true
	default:
		return nil, fmt.Errorf("expected CREATE VIEW or CREATE MATERIALIZED VIEW statement")
	}

	for i, raw := range result.Stmts[1:] {
		index := raw.Stmt.GetIndexStmt()
		if index == nil {
			return nil, fmt.Errorf("statement %d: only CREATE INDEX may follow the view definition", i+2)
		}
		on := Relation{Schema: index.Relation.Schemaname, Name: index.Relation.Relname}
		if on.Name != info.Target.Name || (on.Schema != "" && on.Schema != info.Target.Schema) {
			return nil, fmt.Errorf("statement %d: index is created on %s, not on %s", i+2, on, info.Target)
		}
		info.Indexes = append(info.Indexes, index.Idxname)
		if index.Unique {
			info.UniqueIndex = true
		}
	}

	refs, err := references(sql)
	if err != nil {
		return nil, err
	}
	info.References = refs

	return info, nil
}

// references collects RangeVar nodes from the JSON parse tree of the first
// statement. The created relation itself is a bare field of ViewStmt or
// IntoClause, not a RangeVar node, so only relations read by the body are
// collected.
func references(sql string) ([]Relation, error) {
	tree, err := pg_query.ParseToJSON(sql)
	if err != nil {
		return nil, fmt.Errorf("failed to parse view statement: %w", err)
	}

	var root struct {
		Stmts []any `json:"stmts"`
	}
	if err := json.Unmarshal([]byte(tree), &root); err != nil {
		return nil, fmt.Errorf("failed to decode parse tree: %w", err)
	}
	if len(root.Stmts) == 0 {
		return nil, nil
	}

	seen := make(map[Relation]bool)
	var walk func(node any)
	walk = func(node any) {
		switch n := node.(type) {
		case map[string]any:
			for key, child := range n {
				if rv, ok := child.(map[string]any); ok && key == "RangeVar" {
					name, _ := rv["relname"].(string)
					schema, _ := rv["schemaname"].(string)
					if name != "" {
						seen[Relation{Schema: schema, Name: name}] = true
					}
				}
				walk(child)
			}
		case []any:
			for _, child := range n {
				walk(child)
			}
		}
	}
	// index statements only name the view itself
	walk(root.Stmts[0])

	refs := make([]Relation, 0, len(seen))
	for rel := range seen {
		refs = append(refs, rel)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].String() < refs[j].String()
	})
	return refs, nil
}

// ReferencesIn returns the names of relations referenced inside schema
func (i *Info) ReferencesIn(schema string) []string {
	var names []string
	for _, ref := range i.References {
		if ref.Schema == schema {
			names = append(names, ref.Name)
		}
	}
	return names
}
