package include

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestProcessFile_Includes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "views", "summary.sql"), `CREATE VIEW views.summary AS
\i ../fragments/select.sql
WHERE active;`)
	writeFile(t, filepath.Join(dir, "fragments", "select.sql"), `SELECT id, email
\ir from.sql`)
	writeFile(t, filepath.Join(dir, "fragments", "from.sql"), "FROM public.users")

	result, err := NewProcessor(dir).ProcessFile("views/summary.sql")
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	want := "CREATE VIEW views.summary AS\nSELECT id, email\nFROM public.users\nWHERE active;"
	if result != want {
		t.Errorf("ProcessFile() = %q, want %q", result, want)
	}
}

func TestProcessFile_NoDirectives(t *testing.T) {
	dir := t.TempDir()
	content := "CREATE VIEW views.a AS SELECT 1;\n"
	writeFile(t, filepath.Join(dir, "a.sql"), content)

	result, err := NewProcessor(dir).ProcessFile(filepath.Join(dir, "a.sql"))
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if result != content {
		t.Errorf("ProcessFile() = %q, want %q", result, content)
	}
}

func TestProcessFile_Cycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.sql"), `\i b.sql`)
	writeFile(t, filepath.Join(dir, "b.sql"), `\i a.sql`)

	_, err := NewProcessor(dir).ProcessFile("a.sql")
	if err == nil || !strings.Contains(err.Error(), "include cycle detected") {
		t.Fatalf("expected include cycle error, got %v", err)
	}
}

func TestProcessFile_SameFileTwice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.sql"), "\\i part.sql\n\\i part.sql")
	writeFile(t, filepath.Join(dir, "part.sql"), "SELECT 1")

	result, err := NewProcessor(dir).ProcessFile("main.sql")
	if err != nil {
		t.Fatalf("including the same file twice should be allowed: %v", err)
	}
	if strings.Count(result, "SELECT 1") != 2 {
		t.Errorf("expected the part twice, got %q", result)
	}
}

func TestProcessFile_OutsideBase(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "project")
	writeFile(t, filepath.Join(root, "secret.sql"), "SELECT 1")
	writeFile(t, filepath.Join(base, "main.sql"), `\i ../secret.sql`)

	_, err := NewProcessor(base).ProcessFile("main.sql")
	if err == nil || !strings.Contains(err.Error(), "outside the base directory") {
		t.Fatalf("expected base directory error, got %v", err)
	}
}

func TestProcessFile_MissingInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.sql"), `\i nope.sql`)

	_, err := NewProcessor(dir).ProcessFile("main.sql")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
