package util

import (
	"fmt"

	"github.com/pgviews/pgviews/internal/manifest"
	"github.com/pgviews/pgviews/internal/resolve"
	"github.com/pgviews/pgviews/internal/view"
	"github.com/spf13/cobra"
)

// ConnectionFlags are the connection flags shared by commands that talk to a database
type ConnectionFlags struct {
	Host            string
	Port            int
	DB              string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string

	cmd *cobra.Command
}

// Register adds the connection flags to cmd
func (f *ConnectionFlags) Register(cmd *cobra.Command) {
	f.cmd = cmd
	cmd.Flags().StringVar(&f.Host, "host", "localhost", "Database server host (env: PGHOST)")
	cmd.Flags().IntVar(&f.Port, "port", 5432, "Database server port (env: PGPORT)")
	cmd.Flags().StringVar(&f.DB, "db", "", "Database name of the default database (env: PGDATABASE)")
	cmd.Flags().StringVar(&f.User, "user", "", "Database user name (env: PGUSER)")
	cmd.Flags().StringVar(&f.Password, "password", "", "Database password (env: PGPASSWORD)")
	cmd.Flags().StringVar(&f.SSLMode, "sslmode", "prefer", "SSL mode (env: PGSSLMODE)")
	cmd.Flags().StringVar(&f.ApplicationName, "application-name", "pgviews", "Application name for database connection (env: PGAPPNAME)")
}

func (f *ConnectionFlags) changed(name string) bool {
	return f.cmd != nil && f.cmd.Flags().Changed(name)
}

// pick chooses a connection value. Explicit flags win for the default
// database; otherwise the manifest wins, then explicit flags, then the
// environment, then the flag default.
func (f *ConnectionFlags) pick(isDefault bool, flagName, flagValue, manifestValue, envVar string) string {
	changed := f.changed(flagName)
	if isDefault && changed {
		return flagValue
	}
	if manifestValue != "" {
		return manifestValue
	}
	if changed {
		return flagValue
	}
	return GetEnvWithDefault(envVar, flagValue)
}

// Config builds the connection settings of a manifest database alias
func (f *ConnectionFlags) Config(alias string, db manifest.Database) (*ConnectionConfig, error) {
	isDefault := alias == manifest.DefaultDatabase

	port := db.Port
	switch {
	case isDefault && f.changed("port"):
		port = f.Port
	case port != 0:
	case f.changed("port"):
		port = f.Port
	default:
		port = GetEnvIntWithDefault("PGPORT", f.Port)
	}

	config := &ConnectionConfig{
		Host:            f.pick(isDefault, "host", f.Host, db.Host, "PGHOST"),
		Port:            port,
		User:            f.pick(isDefault, "user", f.User, db.User, "PGUSER"),
		Password:        f.pick(isDefault, "password", f.Password, db.Password, "PGPASSWORD"),
		SSLMode:         f.pick(isDefault, "sslmode", f.SSLMode, db.SSLMode, "PGSSLMODE"),
		ApplicationName: f.pick(isDefault, "application-name", f.ApplicationName, db.ApplicationName, "PGAPPNAME"),
	}

	// --db names the default database only
	switch {
	case isDefault && f.DB != "":
		config.Database = f.DB
	case db.DB != "":
		config.Database = db.DB
	case isDefault:
		config.Database = GetEnvWithDefault("PGDATABASE", "")
	}

	if config.Database == "" {
		return nil, fmt.Errorf("database name is required for %s (use [databases.%s] db, --db or PGDATABASE environment variable)", alias, alias)
	}
	if config.User == "" {
		return nil, fmt.Errorf("database user is required for %s (use [databases.%s] user, --user or PGUSER environment variable)", alias, alias)
	}
	return config, nil
}

// ManifestFlags select the manifest and override its settings
type ManifestFlags struct {
	File        string
	Namespace   string
	MissingDeps string
	Databases   []string
}

// Register adds the manifest flags to cmd
func (f *ManifestFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.File, "file", manifest.FileName, "Path to the view manifest")
	cmd.Flags().StringVar(&f.Namespace, "namespace", "", "Schema holding the managed views (overrides manifest, default \"views\")")
	cmd.Flags().StringVar(&f.MissingDeps, "missing-deps", "", "How to treat dependencies on unknown views: error, block or ignore (overrides manifest)")
	cmd.Flags().StringSliceVar(&f.Databases, "database", nil, "Only process these manifest database aliases")
}

// Settings are the effective settings of a run
type Settings struct {
	Manifest  *manifest.Manifest
	Namespace string
	Missing   resolve.MissingPolicy
	Databases []string
}

// Load reads the manifest and applies flag overrides
func (f *ManifestFlags) Load() (*Settings, error) {
	m, err := manifest.Load(f.File)
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Manifest:  m,
		Namespace: m.Namespace,
		Missing:   m.Missing,
	}
	if f.Namespace != "" {
		s.Namespace = f.Namespace
	}
	if s.Namespace == "" {
		s.Namespace = view.DefaultNamespace
	}
	if f.MissingDeps != "" {
		if s.Missing, err = resolve.ParseMissingPolicy(f.MissingDeps); err != nil {
			return nil, err
		}
	}

	known := make(map[string]bool)
	for _, alias := range m.DatabaseAliases() {
		known[alias] = true
	}
	if len(f.Databases) == 0 {
		// Only databases that have views: a rebuild without views would just drop the namespace
		for _, alias := range m.DatabaseAliases() {
			if len(m.ViewsFor(alias)) > 0 {
				s.Databases = append(s.Databases, alias)
			}
		}
	} else {
		for _, alias := range f.Databases {
			if !known[alias] {
				return nil, fmt.Errorf("unknown database %s", alias)
			}
			s.Databases = append(s.Databases, alias)
		}
	}

	return s, nil
}
