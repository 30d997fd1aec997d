package util

import (
	"context"
	"database/sql"

	"github.com/pgviews/pgviews/internal/logger"
)

// Execer is anything SQL can be executed on: *sql.DB, *sql.Tx or *sql.Conn
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ExecContextWithLogging executes SQL with debug logging if debug mode is enabled.
// It logs the SQL statement before execution and the result/error after execution.
func ExecContextWithLogging(ctx context.Context, db Execer, sqlStmt string, description string, args ...any) (sql.Result, error) {
	isDebug := logger.IsDebug()
	if isDebug {
		logger.Get().Debug("Executing SQL", "description", description, "sql", sqlStmt, "params", len(args))
	}

	result, err := db.ExecContext(ctx, sqlStmt, args...)

	if isDebug {
		if err != nil {
			logger.Get().Debug("SQL execution failed", "description", description, "error", err)
		} else {
			logger.Get().Debug("SQL execution succeeded", "description", description)
		}
	}

	return result, err
}
