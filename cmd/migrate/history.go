package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/farxc/household-migrator/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the latest migration runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			conn, err := openDB(v)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer conn.Close()

			runs, err := store.NewStorage(conn).MigrationRuns.GetLatest(cmd.Context(), v.GetInt(cfgKeyLimit))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTRIGGER\tBY\tSTATUS\tERRORS\tSTARTED\tDURATION")
			for _, run := range runs {
				duration := "-"
				if run.FinishedAt != nil {
					duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					run.ID, run.TriggerType, run.TriggeredBy, run.Status, run.ErrorCount,
					run.StartedAt.Format(time.RFC3339), duration)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int(cfgKeyLimit, 10, "number of runs to show")
	return cmd
}
