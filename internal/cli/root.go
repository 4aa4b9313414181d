/*
Package cli implements the jiji command line.

Every command loads ~/.jiji.json (or --config), applies environment
overrides and then the global flags, so the same binary serves HTTP and
administers the store it serves from.
*/
package cli

import (
	"github.com/spf13/cobra"

	"github.com/learnwithjiji/jiji/internal/version"
)

// GlobalOptions holds the persistent flags shared by all commands.
type GlobalOptions struct {
	ConfigPath string
	Store      string
	DSN        string
	LogLevel   string
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "jiji",
		Short: "Learn with Jiji - answer learning queries with curated resources",
		Long: `jiji answers learning questions with resources from a curated catalog.

It stores every query for the asker's history and serves the
ask-jiji, history and health endpoints over HTTP.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "Config file (default ~/.jiji.json)")
	flags.StringVar(&opts.Store, "store", "", "Store driver: sqlite, postgres or memory")
	flags.StringVar(&opts.DSN, "dsn", "", "SQLite path or PostgreSQL connection string")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewAskCmd(opts))
	cmd.AddCommand(NewHistoryCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewResourcesCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}
