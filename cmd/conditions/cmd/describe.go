package cmd

import (
	"fmt"

	"github.com/solatis/conditions/internal/conditions"
	"github.com/spf13/cobra"
)

func newDescribeCommand(root *rootOptions) *cobra.Command {
	var (
		output string
		group  string
	)

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "List the registered condition groups and types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.load(cmd)
			if err != nil {
				return err
			}

			groups := e.defs.Describe()
			if group != "" {
				filtered := make([]conditions.GroupDescription, 0, 1)
				for _, g := range groups {
					if g.Groupname == group {
						filtered = append(filtered, g)
					}
				}
				if len(filtered) == 0 {
					return fmt.Errorf("unknown condition group %q", group)
				}
				groups = filtered
			}
			return writeOutput(cmd.OutOrStdout(), output, groups)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (json, yaml)")
	cmd.Flags().StringVar(&group, "group", "", "describe a single group")
	return cmd
}
