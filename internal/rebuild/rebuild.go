// Package rebuild drops and recreates the managed namespace of a database and
// creates every view in dependency order inside one transaction.
package rebuild

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgviews/pgviews/cmd/util"
	"github.com/pgviews/pgviews/internal/logger"
	"github.com/pgviews/pgviews/internal/resolve"
	"github.com/pgviews/pgviews/internal/view"
)

// Cursor executes statements inside a transaction
type Cursor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Transactor runs fn inside a single transaction. The transaction commits when
// fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, cur Cursor) error) error
}

// Request describes one rebuild of one target database
type Request struct {
	Namespace string
	Views     []*view.View
	// Grantee receives USAGE on the namespace and SELECT on every non-hidden
	// view. Empty means no grants.
	Grantee     string
	Missing     resolve.MissingPolicy
	LockTimeout string
}

func (r Request) namespace() string {
	if r.Namespace == "" {
		return view.DefaultNamespace
	}
	return r.Namespace
}

// Rebuild resolves the views of req and recreates them from scratch.
// It returns the number of views created. Validation and resolution failures
// are returned before any statement reaches the database.
func Rebuild(ctx context.Context, tx Transactor, req Request) (int, error) {
	if err := view.Validate(req.Views); err != nil {
		return 0, err
	}

	ordered, err := resolve.Resolve(req.Views, resolve.WithMissingPolicy(req.Missing))
	if err != nil {
		return 0, err
	}

	namespace := req.namespace()
	err = tx.WithinTx(ctx, func(ctx context.Context, cur Cursor) error {
		if err := prepare(ctx, cur, namespace, req.LockTimeout); err != nil {
			return err
		}
		if err := resetNamespace(ctx, cur, namespace); err != nil {
			return err
		}
		if err := createViews(ctx, cur, ordered); err != nil {
			return err
		}
		if req.Grantee != "" {
			return grantAccess(ctx, cur, namespace, req.Grantee, ordered)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(ordered), nil
}

// prepare applies the lock timeout and serialises rebuilds of the same namespace
func prepare(ctx context.Context, cur Cursor, namespace, lockTimeout string) error {
	if lockTimeout != "" {
		stmt := "SET LOCAL lock_timeout = " + pq.QuoteLiteral(lockTimeout)
		if _, err := util.ExecContextWithLogging(ctx, cur, stmt, "set lock timeout"); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if _, err := util.ExecContextWithLogging(ctx, cur, "SELECT pg_advisory_xact_lock(hashtext($1))", "lock namespace", namespace); err != nil {
		return fmt.Errorf("failed to lock namespace %s: %w", namespace, err)
	}
	return nil
}

func resetNamespace(ctx context.Context, cur Cursor, namespace string) error {
	if _, err := util.ExecContextWithLogging(ctx, cur, view.DropNamespaceSQL(namespace), "drop namespace"); err != nil {
		return fmt.Errorf("failed to drop namespace %s: %w", namespace, err)
	}
	if _, err := util.ExecContextWithLogging(ctx, cur, view.CreateNamespaceSQL(namespace), "create namespace"); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", namespace, err)
	}
	return nil
}

func createViews(ctx context.Context, cur Cursor, ordered []*view.View) error {
	log := logger.Get()
	for _, v := range ordered {
		log.Info("Generating view", "view", v.Name)
		if _, err := util.ExecContextWithLogging(ctx, cur, v.Create.SQL, "create view "+v.Name, v.Create.Params...); err != nil {
			return fmt.Errorf("failed to create view %s: %w", v.Name, err)
		}
	}
	return nil
}

// grantAccess grants in creation order so the log reads like the creation pass
func grantAccess(ctx context.Context, cur Cursor, namespace, grantee string, ordered []*view.View) error {
	if _, err := util.ExecContextWithLogging(ctx, cur, view.GrantUsageSQL(namespace, grantee), "grant namespace usage"); err != nil {
		return fmt.Errorf("failed to grant usage on %s to %s: %w", namespace, grantee, err)
	}

	for _, v := range ordered {
		if v.Hidden {
			continue
		}
		if _, err := util.ExecContextWithLogging(ctx, cur, view.GrantSelectSQL(namespace, v.Name, grantee), "grant select on "+v.Name); err != nil {
			return fmt.Errorf("failed to grant select on %s to %s: %w", v.Name, grantee, err)
		}
	}
	return nil
}
