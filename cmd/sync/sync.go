package sync

import (
	"context"
	"fmt"

	"github.com/pgviews/pgviews/cmd/util"
	"github.com/pgviews/pgviews/internal/color"
	"github.com/pgviews/pgviews/internal/logger"
	"github.com/pgviews/pgviews/internal/manifest"
	"github.com/pgviews/pgviews/internal/rebuild"
	"github.com/spf13/cobra"
)

var (
	syncConn        util.ConnectionFlags
	syncManifest    util.ManifestFlags
	syncGrant       string
	syncParallel    int
	syncLockTimeout string
	syncNoColor     bool
)

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drop and recreate all managed views",
	Long: `Rebuild every view of the manifest. For each database the namespace is dropped and
recreated, views are created in dependency order and read access is granted, all
inside one transaction. A failure on one database does not affect the others.`,
	RunE: runSync,
}

func init() {
	syncConn.Register(SyncCmd)
	syncManifest.Register(SyncCmd)

	SyncCmd.Flags().StringVar(&syncGrant, "grant", "", "Role to grant USAGE on the namespace and SELECT on non-hidden views (overrides manifest)")
	SyncCmd.Flags().IntVar(&syncParallel, "parallel", 1, "Number of databases rebuilt concurrently")
	SyncCmd.Flags().StringVar(&syncLockTimeout, "lock-timeout", "", "Maximum time to wait for database locks (e.g., 30s, 5min) (overrides manifest)")
	SyncCmd.Flags().BoolVar(&syncNoColor, "no-color", false, "Disable colored output")
}

func runSync(cmd *cobra.Command, args []string) error {
	settings, err := syncManifest.Load()
	if err != nil {
		return err
	}
	m := settings.Manifest

	grantee := m.Grantee
	if syncGrant != "" {
		grantee = syncGrant
	}
	lockTimeout := m.LockTimeout
	if syncLockTimeout != "" {
		lockTimeout = syncLockTimeout
	}

	targets := make([]rebuild.Target, 0, len(settings.Databases))
	for _, alias := range settings.Databases {
		targets = append(targets, rebuild.Target{
			Database: alias,
			Request: rebuild.Request{
				Namespace:   settings.Namespace,
				Views:       m.ViewsFor(alias),
				Grantee:     grantee,
				Missing:     settings.Missing,
				LockTimeout: lockTimeout,
			},
			Open: opener(alias, m.Databases[alias]),
		})
	}

	runner := &rebuild.Runner{Parallelism: syncParallel, Logger: logger.Get()}
	results := runner.Run(cmd.Context(), targets)

	c := color.New(!syncNoColor)
	out := cmd.OutOrStdout()
	failed := 0
	for _, res := range results {
		fmt.Fprintln(out, c.FormatResultLine(res.Database, res.Created, res.Attempted, res.Err))
		if res.Err != nil {
			failed++
		}
	}
	fmt.Fprintln(out, c.FormatSummary(len(results)-failed, failed))

	if failed > 0 {
		return fmt.Errorf("failed to sync views for %d of %d databases", failed, len(results))
	}
	return nil
}

// opener resolves the connection settings lazily so an incomplete alias fails
// only its own target
func opener(alias string, database manifest.Database) rebuild.Opener {
	return func(ctx context.Context) (rebuild.Transactor, func() error, error) {
		config, err := syncConn.Config(alias, database)
		if err != nil {
			return nil, nil, err
		}
		db, err := util.Connect(config)
		if err != nil {
			return nil, nil, err
		}
		tx := rebuild.NewSQLTransactor(db)
		return tx, tx.Close, nil
	}
}
