package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/solatis/conditions/internal/core/db"
	"github.com/spf13/cobra"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.load(cmd)
			if err != nil {
				return err
			}
			database, err := e.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.MigrateUp(cmd.Context(), database); err != nil {
				return err
			}
			e.log.Info("migrations applied", slog.String("driver", database.DriverName()))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.load(cmd)
			if err != nil {
				return err
			}
			database, err := e.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()

			statuses, err := db.MigrateStatus(cmd.Context(), database)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MIGRATION\tSTATUS\tAPPLIED AT")
			for _, s := range statuses {
				state, appliedAt := "pending", "-"
				if s.Applied {
					state = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, state, appliedAt)
			}
			return tw.Flush()
		},
	})

	return cmd
}
