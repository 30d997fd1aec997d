// Package manifest loads view definitions from a TOML manifest.
//
//	namespace = "views"
//	grantee = "analyst"
//
//	[databases.default]
//	host = "localhost"
//	db = "app"
//
//	[[views]]
//	name = "active_users"
//	file = "views/active_users.sql"
//	depends_on = ["users_base"]
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pgviews/pgviews/internal/include"
	"github.com/pgviews/pgviews/internal/resolve"
	"github.com/pgviews/pgviews/internal/sqlcheck"
	"github.com/pgviews/pgviews/internal/view"
)

const (
	// FileName is the manifest read when no path is given
	FileName = "pgviews.toml"
	// DefaultDatabase is the alias of views that do not name a database
	DefaultDatabase = "default"
)

// Database holds the connection settings of one target database. Empty
// fields fall back to command line flags and PG* environment variables.
type Database struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	DB              string `toml:"db"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"sslmode"`
	ApplicationName string `toml:"application_name"`
}

type viewEntry struct {
	ID          string            `toml:"id"`
	Name        string            `toml:"name"`
	Database    string            `toml:"database"`
	DependsOn   []string          `toml:"depends_on"`
	SQL         string            `toml:"sql"`
	File        string            `toml:"file"`
	Params      []any             `toml:"params"`
	Hidden      bool              `toml:"hidden"`
	Document    bool              `toml:"document"`
	Description string            `toml:"description"`
	SchemaQuery string            `toml:"schema_query"`
	Fields      map[string]string `toml:"fields"`
}

type tomlManifest struct {
	Namespace           string              `toml:"namespace"`
	Grantee             string              `toml:"grantee"`
	MissingDependencies string              `toml:"missing_dependencies"`
	LockTimeout         string              `toml:"lock_timeout"`
	Databases           map[string]Database `toml:"databases"`
	Views               []viewEntry         `toml:"views"`
}

// Manifest is a loaded, validated manifest
type Manifest struct {
	Namespace   string
	Grantee     string
	Missing     resolve.MissingPolicy
	LockTimeout string
	Databases   map[string]Database
	Views       []*view.View
}

// Load reads and validates the manifest at path. View SQL files are resolved
// relative to the manifest's directory.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return Parse(string(content), filepath.Dir(path))
}

// Parse decodes manifest content. baseDir anchors view SQL files.
func Parse(content, baseDir string) (*Manifest, error) {
	var raw tomlManifest
	md, err := toml.Decode(content, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("unknown manifest keys: %s", strings.Join(keys, ", "))
	}

	missing, err := resolve.ParseMissingPolicy(raw.MissingDependencies)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Namespace:   raw.Namespace,
		Grantee:     raw.Grantee,
		Missing:     missing,
		LockTimeout: raw.LockTimeout,
		Databases:   raw.Databases,
	}
	if m.Databases == nil {
		m.Databases = make(map[string]Database)
	}

	processor := include.NewProcessor(baseDir)
	for i, entry := range raw.Views {
		v, err := buildView(entry, processor)
		if err != nil {
			return nil, fmt.Errorf("views[%d]: %w", i, err)
		}
		m.Views = append(m.Views, v)
	}

	return m, nil
}

func buildView(entry viewEntry, processor *include.Processor) (*view.View, error) {
	stmt := entry.SQL
	switch {
	case entry.SQL != "" && entry.File != "":
		return nil, fmt.Errorf("sql and file are mutually exclusive")
	case entry.File != "":
		content, err := processor.ProcessFile(entry.File)
		if err != nil {
			return nil, err
		}
		stmt = content
	case entry.SQL == "":
		return nil, fmt.Errorf("one of sql or file is required")
	}

	info, err := sqlcheck.Inspect(stmt)
	if err != nil {
		return nil, err
	}

	name := entry.Name
	if name == "" {
		name = info.Target.Name
	}
	id := entry.ID
	if id == "" {
		id = name
	}
	database := entry.Database
	if database == "" {
		database = DefaultDatabase
	}

	deps := make([]view.Identity, len(entry.DependsOn))
	for i, dep := range entry.DependsOn {
		deps[i] = view.Identity(dep)
	}

	v := &view.View{
		ID:           view.Identity(id),
		Name:         name,
		Database:     database,
		DependsOn:    deps,
		Create:       view.Statement{SQL: stmt, Params: entry.Params},
		Hidden:       entry.Hidden,
		Document:     entry.Document,
		Materialized: info.Materialized,
		Docs: view.Docs{
			Description: entry.Description,
			Fields:      entry.Fields,
		},
	}
	if entry.SchemaQuery != "" {
		v.Docs.SchemaQuery = &view.Statement{SQL: entry.SchemaQuery}
	}
	return v, nil
}

// ViewsFor returns the views of one database alias
func (m *Manifest) ViewsFor(database string) []*view.View {
	var views []*view.View
	for _, v := range m.Views {
		if v.Database == database {
			views = append(views, v)
		}
	}
	return views
}

// DatabaseAliases returns every alias that has views or connection settings, sorted
func (m *Manifest) DatabaseAliases() []string {
	set := make(map[string]bool)
	for alias := range m.Databases {
		set[alias] = true
	}
	for _, v := range m.Views {
		set[v.Database] = true
	}

	aliases := make([]string, 0, len(set))
	for alias := range set {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// FindView returns the view named name (or with that identity) in database
func (m *Manifest) FindView(database, name string) (*view.View, error) {
	for _, v := range m.ViewsFor(database) {
		if v.Name == name || string(v.ID) == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("view %s not found in database %s", name, database)
}
