package order

import (
	"fmt"

	"github.com/pgviews/pgviews/cmd/util"
	"github.com/pgviews/pgviews/internal/color"
	"github.com/pgviews/pgviews/internal/resolve"
	"github.com/spf13/cobra"
)

var (
	orderManifest util.ManifestFlags
	orderCheck    bool
	orderNoColor  bool
)

var OrderCmd = &cobra.Command{
	Use:   "order",
	Short: "Show the order views would be created in",
	Long: `Resolve the dependencies of the manifest's views and print the resolution batches of
each database. Views of one batch only depend on views of earlier batches. No database
connection is made.

With --check, every view statement is also compared with its declaration: undeclared
reads from other managed views and statements creating a differently named relation
are reported and make the command fail.`,
	RunE: runOrder,
}

func init() {
	orderManifest.Register(OrderCmd)
	OrderCmd.Flags().BoolVar(&orderCheck, "check", false, "Report views whose SQL disagrees with their declared name or dependencies")
	OrderCmd.Flags().BoolVar(&orderNoColor, "no-color", false, "Disable colored output")
}

func runOrder(cmd *cobra.Command, args []string) error {
	settings, err := orderManifest.Load()
	if err != nil {
		return err
	}
	m := settings.Manifest

	c := color.New(!orderNoColor)
	out := cmd.OutOrStdout()
	for _, alias := range settings.Databases {
		views := m.ViewsFor(alias)
		batches, err := resolve.Batches(views, resolve.WithMissingPolicy(settings.Missing))
		if err != nil {
			return fmt.Errorf("failed to resolve views of %s: %w", alias, err)
		}

		fmt.Fprintln(out, c.FormatDatabaseHeader(alias, settings.Namespace, len(views)))
		for i, batch := range batches {
			names := make([]string, len(batch))
			for j, v := range batch {
				names[j] = v.Name
				if v.Hidden {
					names[j] += " (hidden)"
				}
			}
			fmt.Fprintln(out, c.FormatBatchLine(i, names))
		}
	}

	if !orderCheck {
		return nil
	}

	selected := make(map[string]bool, len(settings.Databases))
	for _, alias := range settings.Databases {
		selected[alias] = true
	}
	var count int
	for _, finding := range m.Lint(settings.Namespace) {
		if !selected[finding.Database] {
			continue
		}
		count++
		fmt.Fprintln(out, c.Warn("warning: ")+finding.String())
	}
	if count > 0 {
		return fmt.Errorf("%d view definitions disagree with the manifest", count)
	}
	return nil
}
