package docs

import (
	"fmt"
	"io"
	"os"

	"github.com/pgviews/pgviews/cmd/util"
	viewdocs "github.com/pgviews/pgviews/internal/docs"
	"github.com/spf13/cobra"
)

var (
	docsConn     util.ConnectionFlags
	docsManifest util.ManifestFlags
	docsOutput   string
)

var DocsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Generate documentation for managed views",
	Long: `Generate JSON documentation for every view with document = true. Column names and
types are read from the database, so views must have been synced first; descriptions
come from the manifest.`,
	RunE: runDocs,
}

func init() {
	docsConn.Register(DocsCmd)
	docsManifest.Register(DocsCmd)
	DocsCmd.Flags().StringVar(&docsOutput, "output", "", "Write documentation to this file instead of stdout")
}

func runDocs(cmd *cobra.Command, args []string) error {
	settings, err := docsManifest.Load()
	if err != nil {
		return err
	}
	m := settings.Manifest

	var all []viewdocs.TableDoc
	for _, alias := range settings.Databases {
		config, err := docsConn.Config(alias, m.Databases[alias])
		if err != nil {
			return err
		}

		db, err := util.Connect(config)
		if err != nil {
			return fmt.Errorf("failed to connect to database %s: %w", alias, err)
		}
		docs, err := viewdocs.Extract(cmd.Context(), &viewdocs.SQLInspector{DB: db}, settings.Namespace, m.ViewsFor(alias), settings.Missing)
		db.Close()
		if err != nil {
			return fmt.Errorf("failed to document views of %s: %w", alias, err)
		}
		all = append(all, docs...)
	}

	if docsOutput == "" {
		return viewdocs.Write(cmd.OutOrStdout(), all)
	}

	f, err := os.Create(docsOutput)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	return writeAndClose(f, all)
}

// writeAndClose writes docs to w and reports a failed close as an error, since
// that is where buffered file writes surface
func writeAndClose(w io.WriteCloser, docs []viewdocs.TableDoc) error {
	if err := viewdocs.Write(w, docs); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	return nil
}
