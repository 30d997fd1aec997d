package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgviews/pgviews/internal/resolve"
	"github.com/pgviews/pgviews/internal/view"
)

type fakeInspector struct {
	fields map[string][]Field
	calls  []string
	err    error
}

func (f *fakeInspector) Fields(ctx context.Context, namespace string, v *view.View) ([]Field, error) {
	f.calls = append(f.calls, namespace+"."+v.Name)
	if f.err != nil {
		return nil, f.err
	}
	return f.fields[v.Name], nil
}

func TestExtract(t *testing.T) {
	users := &view.View{
		ID:       "users",
		Name:     "users",
		Database: "default",
		Document: true,
		Docs: view.Docs{
			Description: "Active users",
			Fields:      map[string]string{"id": "User id"},
		},
	}
	totals := &view.View{
		ID:           "totals",
		Name:         "totals",
		Database:     "default",
		DependsOn:    []view.Identity{"users"},
		Document:     true,
		Materialized: true,
	}
	internal := &view.View{ID: "internal", Name: "internal", Database: "default"}

	inspector := &fakeInspector{fields: map[string][]Field{
		"users":  {{"id", "integer"}, {"email", "text"}},
		"totals": {{"total", "numeric"}},
	}}

	got, err := Extract(context.Background(), inspector, "views", []*view.View{totals, internal, users}, resolve.MissingError)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []TableDoc{
		{
			Database:    "default",
			Name:        "users",
			Type:        TypeView,
			Description: "Active users",
			Fields: []FieldDoc{
				{Name: "id", Type: "integer", Description: "User id"},
				{Name: "email", Type: "text"},
			},
		},
		{
			Database: "default",
			Name:     "totals",
			Type:     TypeMaterializedView,
			Fields:   []FieldDoc{{Name: "total", Type: "numeric"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"views.users", "views.totals"}, inspector.calls); diff != "" {
		t.Errorf("views should be inspected in creation order (-want +got):\n%s", diff)
	}
}

func TestExtractErrors(t *testing.T) {
	cyclic := []*view.View{
		{ID: "a", Name: "a", DependsOn: []view.Identity{"b"}, Document: true},
		{ID: "b", Name: "b", DependsOn: []view.Identity{"a"}, Document: true},
	}
	inspector := &fakeInspector{}
	_, err := Extract(context.Background(), inspector, "views", cyclic, resolve.MissingError)
	var cycleErr *resolve.CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if len(inspector.calls) != 0 {
		t.Errorf("no view should be inspected when resolution fails, got %v", inspector.calls)
	}

	failing := &fakeInspector{err: errors.New("permission denied")}
	_, err = Extract(context.Background(), failing, "views", []*view.View{{ID: "a", Name: "a", Document: true}}, resolve.MissingError)
	if err == nil {
		t.Fatal("expected inspector error to be returned")
	}
}

func TestExtractRejectsDuplicateNames(t *testing.T) {
	views := []*view.View{
		{ID: "sales.totals", Name: "totals", Document: true},
		{ID: "billing.totals", Name: "totals", Document: true},
	}
	inspector := &fakeInspector{}

	docs, err := Extract(context.Background(), inspector, "views", views, resolve.MissingError)
	var dupErr *view.DuplicateNameError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateNameError, got %v (docs %v)", err, docs)
	}
	if dupErr.Name != "totals" {
		t.Errorf("duplicate name = %q, want totals", dupErr.Name)
	}
	if len(inspector.calls) != 0 {
		t.Errorf("no view should be inspected when validation fails, got %v", inspector.calls)
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := buf.String(); got != "[]\n" {
		t.Errorf("Write(nil) = %q, want empty array", got)
	}

	buf.Reset()
	docs := []TableDoc{{Database: "default", Name: "users", Type: TypeView, Fields: []FieldDoc{{Name: "id", Type: "integer"}}}}
	if err := Write(&buf, docs); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded[0]["type"] != TypeView {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
