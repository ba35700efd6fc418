package main

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate legacy household documents into relational tables",
		Long: `migrate reads every household and per-user finance document from the
legacy key-value table and upserts them into the relational schema.

Settings come from flags, MIGRATOR_* environment variables, an optional
migrator.yaml and finally the DB_* variables shared with the API server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String(cfgKeyConfig, "", "config file (default: ./migrator.yaml)")
	flags.String(cfgKeyDBDriver, "", "database driver: postgres or sqlite")
	flags.String(cfgKeyDBAddr, "", "database connection string")
	flags.String(cfgKeyLogLevel, "", "minimum log level: debug, info, warn or error")

	root.AddCommand(newRunCmd())
	root.AddCommand(newSchemaCmd())
	root.AddCommand(newHistoryCmd())

	return root
}
