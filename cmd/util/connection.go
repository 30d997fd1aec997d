package util

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pgviews/pgviews/internal/logger"
)

// ConnectionConfig holds database connection parameters
type ConnectionConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
}

// Connect establishes a database connection using the provided configuration.
//
// Statements run in the simple query protocol: view definitions are DDL, which
// PostgreSQL cannot parameterize server side, so bound parameters are
// interpolated by pgx on the client.
func Connect(config *ConnectionConfig) (*sql.DB, error) {
	log := logger.Get()

	log.Debug("Attempting database connection",
		"host", config.Host,
		"port", config.Port,
		"database", config.Database,
		"user", config.User,
		"sslmode", config.SSLMode,
		"application_name", config.ApplicationName,
	)

	connConfig, err := pgx.ParseConfig(buildDSN(config))
	if err != nil {
		log.Debug("Invalid connection parameters", "error", err)
		return nil, fmt.Errorf("failed to parse connection parameters: %w", err)
	}
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	conn := stdlib.OpenDB(*connConfig)

	// Test the connection
	if err := conn.Ping(); err != nil {
		log.Debug("Database ping failed", "error", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Debug("Database connection established successfully")
	return conn, nil
}

// buildDSN constructs a PostgreSQL connection string from connection parameters
func buildDSN(config *ConnectionConfig) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("host=%s", quoteDSNValue(config.Host)))
	parts = append(parts, fmt.Sprintf("port=%d", config.Port))
	parts = append(parts, fmt.Sprintf("dbname=%s", quoteDSNValue(config.Database)))
	parts = append(parts, fmt.Sprintf("user=%s", quoteDSNValue(config.User)))

	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteDSNValue(config.Password)))
	}

	if config.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", config.SSLMode))
	}

	if config.ApplicationName != "" {
		parts = append(parts, fmt.Sprintf("application_name=%s", quoteDSNValue(config.ApplicationName)))
	}

	return strings.Join(parts, " ")
}

// quoteDSNValue quotes a keyword/value connection string value when it
// contains spaces, quotes or backslashes
func quoteDSNValue(value string) string {
	if value != "" && !strings.ContainsAny(value, ` '\`) {
		return value
	}
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}
