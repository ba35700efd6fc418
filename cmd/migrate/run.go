package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/farxc/household-migrator/internal/db"
	"github.com/farxc/household-migrator/internal/migration"
	"github.com/farxc/household-migrator/internal/store"
	"github.com/farxc/household-migrator/internal/store/memory"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the migration and print its summary as JSON",
		Long: `run migrates every recognised key once. Per-record failures are listed in
the summary and do not change the exit status; only an unreadable source
store does.

With --dry-run the records are written to an in-memory store and the
database is left untouched.`,
		Args: cobra.NoArgs,
		RunE: runMigration,
	}

	cmd.Flags().Bool(cfgKeyDryRun, false, "migrate into memory without writing to the database")
	cmd.Flags().String(cfgKeySourceFile, "", "read entries from a JSON export instead of the source table")
	cmd.Flags().String(cfgKeySourceTable, "", "legacy key-value table (default: kv_store)")
	cmd.Flags().Bool(cfgKeyBootstrap, false, "apply the schema before migrating")
	cmd.Flags().String(cfgKeyTriggeredBy, "", "operator recorded in the run history (default: $USER)")

	return cmd
}

func runMigration(cmd *cobra.Command, _ []string) error {
	const component = "MigrateCLI"

	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(v, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	dryRun := v.GetBool(cfgKeyDryRun)
	sourceFile := v.GetString(cfgKeySourceFile)

	monitor := NewMonitor()
	monitor.Start(500*time.Millisecond, log)
	defer func() {
		stats := monitor.Stop()
		log.Info(component, "Resource usage: peakGoroutines=%d peakMemoryMB=%d", stats.PeakGoroutines, stats.PeakMemoryMB)
	}()

	var conn *sqlx.DB
	if !dryRun || sourceFile == "" {
		conn, err = openDB(v)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer conn.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if v.GetBool(cfgKeyBootstrap) && !dryRun {
		if err := db.EnsureSchema(ctx, conn); err != nil {
			return err
		}
		log.Info(component, "Schema applied")
	}

	var source store.Source
	if sourceFile != "" {
		source = store.NewFileSource(sourceFile)
	} else {
		kv, err := store.NewKVSource(conn, v.GetString(cfgKeySourceTable))
		if err != nil {
			return err
		}
		source = kv
	}

	var dest *store.Storage
	if dryRun {
		dest = memory.NewStorage()
	} else {
		dest = store.NewStorage(conn)
	}

	// Signals only interrupt setup; a started run always finishes and closes
	// its history row.
	runner := migration.New(source, dest, migration.WithLogger(log))
	summary, err := runner.Run(context.WithoutCancel(ctx), migration.RunOptions{
		Trigger:     store.TriggerTypeCLI,
		TriggeredBy: v.GetString(cfgKeyTriggeredBy),
	})
	if err != nil {
		return err
	}

	if dryRun {
		log.Info(component, "Dry run finished, nothing was written: records=%d errors=%d", summary.Total(), len(summary.Errors))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
