package rebuild

import (
	"context"
	"fmt"

	"github.com/pgviews/pgviews/cmd/util"
	"github.com/pgviews/pgviews/internal/view"
)

// Refresh refreshes one materialized view of the namespace.
// CONCURRENTLY cannot run inside a transaction block, so db must not be a
// transaction when concurrently is set.
func Refresh(ctx context.Context, db util.Execer, namespace string, v *view.View, concurrently bool) error {
	if !v.Materialized {
		return fmt.Errorf("view %s is not a materialized view", v.Name)
	}
	if namespace == "" {
		namespace = view.DefaultNamespace
	}

	stmt := view.RefreshSQL(namespace, v.Name, concurrently)
	if _, err := util.ExecContextWithLogging(ctx, db, stmt, "refresh materialized view "+v.Name); err != nil {
		return fmt.Errorf("failed to refresh materialized view %s: %w", v.Name, err)
	}
	return nil
}
