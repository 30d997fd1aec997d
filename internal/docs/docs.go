// Package docs assembles documentation records for managed views from their
// declared descriptions and the columns PostgreSQL reports for them.
package docs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pgviews/pgviews/internal/logger"
	"github.com/pgviews/pgviews/internal/resolve"
	"github.com/pgviews/pgviews/internal/view"
)

// Table types
const (
	TypeView             = "postgres_view"
	TypeMaterializedView = "postgres_materialized_view"
)

// Field is a column as reported by the database
type Field struct {
	Name string
	Type string
}

// FieldDoc documents one column
type FieldDoc struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TableDoc documents one view
type TableDoc struct {
	Database    string     `json:"database"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Fields      []FieldDoc `json:"fields"`
}

// Inspector returns the columns of a view
type Inspector interface {
	Fields(ctx context.Context, namespace string, v *view.View) ([]Field, error)
}

// Extract documents every view with documentation enabled, in creation order
func Extract(ctx context.Context, inspector Inspector, namespace string, views []*view.View, missing resolve.MissingPolicy) ([]TableDoc, error) {
	if err := view.Validate(views); err != nil {
		return nil, err
	}
	ordered, err := resolve.Resolve(views, resolve.WithMissingPolicy(missing))
	if err != nil {
		return nil, err
	}

	var docs []TableDoc
	for _, v := range ordered {
		if !v.Document {
			continue
		}

		fields, err := inspector.Fields(ctx, namespace, v)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect view %s: %w", v.Name, err)
		}
		logger.Get().Debug("Inspected view", "view", v.Name, "fields", len(fields))

		docs = append(docs, document(v, fields))
	}
	return docs, nil
}

func document(v *view.View, fields []Field) TableDoc {
	tableType := TypeView
	if v.Materialized {
		tableType = TypeMaterializedView
	}

	fieldDocs := make([]FieldDoc, len(fields))
	for i, f := range fields {
		fieldDocs[i] = FieldDoc{
			Name:        f.Name,
			Type:        f.Type,
			Description: v.Docs.Fields[f.Name],
		}
	}

	return TableDoc{
		Database:    v.Database,
		Name:        v.Name,
		Type:        tableType,
		Description: v.Docs.Description,
		Fields:      fieldDocs,
	}
}

// Write encodes docs as indented JSON
func Write(w io.Writer, docs []TableDoc) error {
	if docs == nil {
		docs = []TableDoc{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

// Querier runs row-returning queries
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Materialized views are not listed in information_schema.columns
const (
	viewColumnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

	materializedViewColumnsQuery = `SELECT a.attname, format_type(a.atttypid, a.atttypmod)
FROM pg_attribute a
JOIN pg_class c ON c.oid = a.attrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2 AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY a.attnum`
)

// SQLInspector reads view columns from the database catalog, or with the
// view's own schema query when it declares one
type SQLInspector struct {
	DB Querier
}

// Fields implements Inspector
func (i *SQLInspector) Fields(ctx context.Context, namespace string, v *view.View) ([]Field, error) {
	query, args := viewColumnsQuery, []any{namespace, v.Name}
	if v.Materialized {
		query = materializedViewColumnsQuery
	}
	if v.Docs.SchemaQuery != nil {
		query, args = v.Docs.SchemaQuery.SQL, v.Docs.SchemaQuery.Params
	}

	rows, err := i.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []Field
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.Name, &f.Type); err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}
