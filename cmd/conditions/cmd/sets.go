package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/store"
	"github.com/solatis/conditions/internal/types"
	"github.com/spf13/cobra"
)

func newSetsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Manage stored condition sets",
	}

	// withStore opens the migrated database for the duration of fn.
	withStore := func(cmd *cobra.Command, fn func(*store.Store) error) error {
		e, err := root.load(cmd)
		if err != nil {
			return err
		}
		database, queries, err := e.openQueries(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()
		return fn(store.New(queries, e.defs))
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "put NAME FILE",
			Short: "Validate a condition document and store it under NAME",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := readDocument(cmd.InOrStdin(), args[1])
				if err != nil {
					return err
				}
				return withStore(cmd, func(s *store.Store) error {
					list, err := conditions.Decode(doc, s.Definitions())
					if err != nil {
						return err
					}
					set, err := s.Put(cmd.Context(), args[0], list)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), set.ID)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "get NAME",
			Short: "Print a stored condition set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(s *store.Store) error {
					set, err := s.GetByName(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					var tree any
					if err := json.Unmarshal(set.Conditions, &tree); err != nil {
						return err
					}
					return writeOutput(cmd.OutOrStdout(), "json", map[string]any{
						"id":         set.ID,
						"name":       set.Name,
						"conditions": tree,
						"created_at": set.CreatedAt,
						"updated_at": set.UpdatedAt,
					})
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List stored condition sets",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(s *store.Store) error {
					sets, err := s.List(cmd.Context())
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tUPDATED AT")
					for _, set := range sets {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", set.ID, set.Name, set.UpdatedAt.Format(time.RFC3339))
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a stored condition set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, func(s *store.Store) error {
					return s.Delete(cmd.Context(), types.SetID(args[0]))
				})
			},
		},
	)

	return cmd
}
