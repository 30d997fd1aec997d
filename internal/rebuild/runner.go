package rebuild

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pgviews/pgviews/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Opener connects to a target database. The returned close function releases
// the connection.
type Opener func(ctx context.Context) (Transactor, func() error, error)

// Target is one database to rebuild
type Target struct {
	Database string
	Request  Request
	Open     Opener
}

// Result reports the outcome of one target
type Result struct {
	Database  string
	Attempted int
	Created   int
	Err       error
}

// Runner rebuilds several target databases. Every target owns its connection
// and transaction, so a failing target never affects the others.
type Runner struct {
	// Parallelism bounds how many targets are rebuilt at once. Values below
	// two rebuild targets one after the other, in order.
	Parallelism int
	Logger      *slog.Logger
}

// Run rebuilds all targets and returns one result per target, in input order
func (r *Runner) Run(ctx context.Context, targets []Target) []Result {
	log := r.Logger
	if log == nil {
		log = logger.Get()
	}

	databases := make([]string, len(targets))
	for i, t := range targets {
		databases[i] = t.Database
	}
	log.Info("Syncing views", "databases", databases)

	limit := r.Parallelism
	if limit < 1 {
		limit = 1
	}

	results := make([]Result, len(targets))
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for i, t := range targets {
		i, t := i, t
		g.Go(func() error {
			results[i] = runTarget(ctx, log, t)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, res := range results {
		if res.Err == nil {
			succeeded++
		}
	}
	log.Info("Finished syncing views", "databases", len(results), "succeeded", succeeded, "failed", len(results)-succeeded)

	return results
}

func runTarget(ctx context.Context, log *slog.Logger, t Target) Result {
	res := Result{Database: t.Database, Attempted: len(t.Request.Views)}

	tx, closeFn, err := t.Open(ctx)
	if err != nil {
		res.Err = fmt.Errorf("failed to connect to database %s: %w", t.Database, err)
		log.Error("Failed to sync views", "database", t.Database, "attempted", res.Attempted, "error", res.Err)
		return res
	}
	defer func() {
		if closeFn == nil {
			return
		}
		if err := closeFn(); err != nil {
			log.Warn("Failed to close connection", "database", t.Database, "error", err)
		}
	}()

	created, err := Rebuild(ctx, tx, t.Request)
	if err != nil {
		res.Err = err
		log.Error("Failed to sync views", "database", t.Database, "attempted", res.Attempted, "error", err)
		return res
	}

	res.Created = created
	log.Info("Successfully synced views", "database", t.Database, "count", created)
	return res
}
