package refresh

import (
	"fmt"

	"github.com/pgviews/pgviews/cmd/util"
	"github.com/pgviews/pgviews/internal/manifest"
	"github.com/pgviews/pgviews/internal/rebuild"
	"github.com/pgviews/pgviews/internal/view"
	"github.com/spf13/cobra"
)

var (
	refreshConn         util.ConnectionFlags
	refreshManifest     util.ManifestFlags
	refreshConcurrently bool
)

var RefreshCmd = &cobra.Command{
	Use:   "refresh VIEW...",
	Short: "Refresh materialized views",
	Long: `Refresh one or more materialized views of the manifest. Views are looked up by name or
identity in the database selected with --database (default "default").`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefresh,
}

func init() {
	refreshConn.Register(RefreshCmd)
	refreshManifest.Register(RefreshCmd)
	RefreshCmd.Flags().BoolVar(&refreshConcurrently, "concurrently", false, "Refresh without locking out readers (requires a unique index)")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	settings, err := refreshManifest.Load()
	if err != nil {
		return err
	}
	m := settings.Manifest

	alias := manifest.DefaultDatabase
	switch len(refreshManifest.Databases) {
	case 0:
	case 1:
		alias = refreshManifest.Databases[0]
	default:
		return fmt.Errorf("refresh works on a single database, got %d", len(refreshManifest.Databases))
	}

	views := make([]*view.View, 0, len(args))
	for _, name := range args {
		v, err := m.FindView(alias, name)
		if err != nil {
			return err
		}
		if !v.Materialized {
			return fmt.Errorf("view %s is not a materialized view", v.Name)
		}
		views = append(views, v)
	}

	config, err := refreshConn.Config(alias, m.Databases[alias])
	if err != nil {
		return err
	}
	db, err := util.Connect(config)
	if err != nil {
		return fmt.Errorf("failed to connect to database %s: %w", alias, err)
	}
	defer db.Close()

	for _, v := range views {
		if err := rebuild.Refresh(cmd.Context(), db, settings.Namespace, v, refreshConcurrently); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s.%s\n", settings.Namespace, v.Name)
	}
	return nil
}
