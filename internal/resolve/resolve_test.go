package resolve

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgviews/pgviews/internal/view"
)

func newTestView(id string, deps ...string) *view.View {
	depIDs := make([]view.Identity, len(deps))
	for i, dep := range deps {
		depIDs[i] = view.Identity(dep)
	}
	return &view.View{
		ID:        view.Identity(id),
		Name:      id,
		DependsOn: depIDs,
		Create:    view.Statement{SQL: fmt.Sprintf("CREATE VIEW views.%s AS SELECT 1", id)},
	}
}

func ids(views []*view.View) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = string(v.ID)
	}
	return out
}

// assertValidOrder checks every view appears once and after all its dependencies
func assertValidOrder(t *testing.T, input, sorted []*view.View) {
	t.Helper()

	if len(sorted) != len(input) {
		t.Fatalf("expected %d views, got %d: %v", len(input), len(sorted), ids(sorted))
	}

	order := make(map[view.Identity]int, len(sorted))
	for idx, v := range sorted {
		if _, dup := order[v.ID]; dup {
			t.Fatalf("view %s appears more than once in %v", v.ID, ids(sorted))
		}
		order[v.ID] = idx
	}

	for _, v := range input {
		pos, ok := order[v.ID]
		if !ok {
			t.Fatalf("view %s missing from %v", v.ID, ids(sorted))
		}
		for _, dep := range v.DependsOn {
			if order[dep] >= pos {
				t.Fatalf("expected %s to appear before %s in %v", dep, v.ID, ids(sorted))
			}
		}
	}
}

func TestResolveLinearChain(t *testing.T) {
	views := []*view.View{
		newTestView("a", "b"),
		newTestView("b", "c"),
		newTestView("c", "d"),
		newTestView("d"),
	}

	sorted, err := Resolve(views)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if diff := cmp.Diff([]string{"d", "c", "b", "a"}, ids(sorted)); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestBatchesWithoutDependencies(t *testing.T) {
	views := []*view.View{
		newTestView("z"),
		newTestView("a"),
		newTestView("m"),
		newTestView("b"),
	}

	batches, err := Batches(views)
	if err != nil {
		t.Fatalf("Batches() error = %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected a single batch, got %d", len(batches))
	}
	if diff := cmp.Diff([]string{"a", "b", "m", "z"}, ids(batches[0])); diff != "" {
		t.Errorf("unexpected batch (-want +got):\n%s", diff)
	}
}

func TestBatchesLayers(t *testing.T) {
	views := []*view.View{
		newTestView("orders"),
		newTestView("customers"),
		newTestView("order_totals", "orders"),
		newTestView("customer_summary", "customers", "order_totals"),
		newTestView("report", "customer_summary", "orders"),
	}

	batches, err := Batches(views)
	if err != nil {
		t.Fatalf("Batches() error = %v", err)
	}

	got := make([][]string, len(batches))
	for i, b := range batches {
		got[i] = ids(b)
	}
	want := [][]string{
		{"customers", "orders"},
		{"order_totals"},
		{"customer_summary"},
		{"report"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected batches (-want +got):\n%s", diff)
	}
}

func TestResolveTwoCycle(t *testing.T) {
	views := []*view.View{
		newTestView("a", "b"),
		newTestView("b", "a"),
		newTestView("c"),
	}

	_, err := Resolve(views)
	var cycleErr *CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}

	want := map[view.Identity][]view.Identity{
		"a": {"b"},
		"b": {"a"},
	}
	if diff := cmp.Diff(want, cycleErr.Remaining); diff != "" {
		t.Errorf("unexpected residual graph (-want +got):\n%s", diff)
	}
}

func TestResolveCycleReportsBlockedDependents(t *testing.T) {
	views := []*view.View{
		newTestView("base"),
		newTestView("x", "y", "base"),
		newTestView("y", "z"),
		newTestView("z", "x"),
		newTestView("w", "z"),
	}

	_, err := Resolve(views)
	var cycleErr *CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}

	// base resolved and was subtracted from x
	want := map[view.Identity][]view.Identity{
		"w": {"z"},
		"x": {"y"},
		"y": {"z"},
		"z": {"x"},
	}
	if diff := cmp.Diff(want, cycleErr.Remaining); diff != "" {
		t.Errorf("unexpected residual graph (-want +got):\n%s", diff)
	}

	wantMsg := "cyclic dependency exists amongst {w: [z], x: [y], y: [z], z: [x]}"
	if err.Error() != wantMsg {
		t.Errorf("Error() = %q, want %q", err.Error(), wantMsg)
	}
}

func TestResolveSelfDependency(t *testing.T) {
	_, err := Resolve([]*view.View{newTestView("a", "a")})
	var cycleErr *CyclicDependencyError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CyclicDependencyError, got %v", err)
	}
	if diff := cmp.Diff(map[view.Identity][]view.Identity{"a": {"a"}}, cycleErr.Remaining); diff != "" {
		t.Errorf("unexpected residual graph (-want +got):\n%s", diff)
	}
}

func TestResolveMissingDependencyPolicies(t *testing.T) {
	views := []*view.View{
		newTestView("a", "ghost"),
		newTestView("b", "a"),
		newTestView("c"),
	}

	t.Run("error", func(t *testing.T) {
		_, err := Resolve(views)
		var unknownErr *UnknownDependencyError
		if !errors.As(err, &unknownErr) {
			t.Fatalf("expected UnknownDependencyError, got %v", err)
		}
		want := map[view.Identity][]view.Identity{"a": {"ghost"}}
		if diff := cmp.Diff(want, unknownErr.Missing); diff != "" {
			t.Errorf("unexpected missing map (-want +got):\n%s", diff)
		}
	})

	t.Run("block", func(t *testing.T) {
		_, err := Resolve(views, WithMissingPolicy(MissingBlock))
		var cycleErr *CyclicDependencyError
		if !errors.As(err, &cycleErr) {
			t.Fatalf("expected CyclicDependencyError, got %v", err)
		}
		want := map[view.Identity][]view.Identity{
			"a": {"ghost"},
			"b": {"a"},
		}
		if diff := cmp.Diff(want, cycleErr.Remaining); diff != "" {
			t.Errorf("unexpected residual graph (-want +got):\n%s", diff)
		}
	})

	t.Run("ignore", func(t *testing.T) {
		sorted, err := Resolve(views, WithMissingPolicy(MissingIgnore))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if diff := cmp.Diff([]string{"a", "c", "b"}, ids(sorted)); diff != "" {
			t.Errorf("unexpected order (-want +got):\n%s", diff)
		}
	})
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	views := []*view.View{
		newTestView("a", "b", "c"),
		newTestView("b", "c"),
		newTestView("c"),
	}

	if _, err := Resolve(views); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if diff := cmp.Diff([]view.Identity{"b", "c"}, views[0].DependsOn); diff != "" {
		t.Errorf("dependencies of a were modified (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(views)); diff != "" {
		t.Errorf("input slice was reordered (-want +got):\n%s", diff)
	}
}

func TestResolveDuplicateIdentity(t *testing.T) {
	first := newTestView("a")
	second := newTestView("a")
	second.Name = "other"

	sorted, err := Resolve([]*view.View{first, newTestView("b", "a"), second})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids(sorted)); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
	if sorted[0] != first {
		t.Errorf("expected the first descriptor of a duplicated identity to be kept")
	}
}

func TestResolveEmpty(t *testing.T) {
	sorted, err := Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(sorted) != 0 {
		t.Errorf("expected empty order, got %v", ids(sorted))
	}
}

// randomDAG builds n views where each view may only depend on lower indices
func randomDAG(rng *rand.Rand, n int) []*view.View {
	views := make([]*view.View, n)
	for i := 0; i < n; i++ {
		var deps []string
		for j := 0; j < i; j++ {
			if rng.Intn(4) == 0 {
				deps = append(deps, fmt.Sprintf("v%03d", j))
			}
		}
		views[i] = newTestView(fmt.Sprintf("v%03d", i), deps...)
	}
	rng.Shuffle(len(views), func(i, j int) { views[i], views[j] = views[j], views[i] })
	return views
}

func TestResolveRandomAcyclicGraphs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		views := randomDAG(rng, 1+rng.Intn(40))

		first, err := Resolve(views)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		assertValidOrder(t, views, first)

		second, err := Resolve(views)
		if err != nil {
			t.Fatalf("second Resolve() error = %v", err)
		}
		assertValidOrder(t, views, second)
	}
}

func TestResolveConcurrentIndependentGraphs(t *testing.T) {
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			views := randomDAG(rand.New(rand.NewSource(seed)), 30)
			if _, err := Resolve(views); err != nil {
				errs <- err
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Resolve() error = %v", err)
	}
}

func TestParseMissingPolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    MissingPolicy
		wantErr bool
	}{
		{"", MissingError, false},
		{"error", MissingError, false},
		{"Block", MissingBlock, false},
		{" ignore ", MissingIgnore, false},
		{"skip", MissingError, true},
	}

	for _, tt := range tests {
		got, err := ParseMissingPolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMissingPolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMissingPolicy(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
