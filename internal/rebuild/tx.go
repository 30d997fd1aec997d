package rebuild

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLTransactor runs rebuilds on a database/sql connection pool
type SQLTransactor struct {
	DB *sql.DB
}

// NewSQLTransactor wraps db
func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{DB: db}
}

// WithinTx implements Transactor
func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, cur Cursor) error) error {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying pool
func (t *SQLTransactor) Close() error {
	return t.DB.Close()
}
