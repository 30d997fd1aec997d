package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pgviews/pgviews/cmd/docs"
	"github.com/pgviews/pgviews/cmd/order"
	"github.com/pgviews/pgviews/cmd/refresh"
	synccmd "github.com/pgviews/pgviews/cmd/sync"
	"github.com/pgviews/pgviews/internal/logger"
	"github.com/pgviews/pgviews/internal/version"
	"github.com/spf13/cobra"
)

var Debug bool

var RootCmd = &cobra.Command{
	Use:   "pgviews",
	Short: "PostgreSQL managed view rebuild tool",
	Long: fmt.Sprintf(`pgviews rebuilds a set of interdependent PostgreSQL views from a manifest.

Version: %s

Commands:
  sync     Drop and recreate all managed views
  order    Show the order views would be created in
  docs     Generate documentation for managed views
  refresh  Refresh materialized views

Use "pgviews [command] --help" for more information about a command.`, version.String()),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(synccmd.SyncCmd)
	RootCmd.AddCommand(order.OrderCmd)
	RootCmd.AddCommand(docs.DocsCmd)
	RootCmd.AddCommand(refresh.RefreshCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	logger.Setup(os.Stderr, Debug)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
