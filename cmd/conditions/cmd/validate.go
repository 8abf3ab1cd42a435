package cmd

import (
	"fmt"

	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/types"
	"github.com/spf13/cobra"
)

func newValidateCommand(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a condition document against the definitions",
		Long: `Validate decodes a JSON or YAML condition document ("-" reads stdin) and
reports the first problem with its location in the tree.`,
		Example: `  conditions validate rules.json
  conditions validate --definitions defs.yaml -o json rules.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.load(cmd)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			list, decodeErr := conditions.Decode(doc, e.defs)
			out := cmd.OutOrStdout()

			if output == "json" {
				result := map[string]any{"valid": decodeErr == nil}
				invalid, isInvalid := types.AsInvalidCondition(decodeErr)
				switch {
				case decodeErr == nil:
					result["leaves"] = list.Len()
					result["leaf_conditions"] = leafSummaries(list)
					result["cost"] = list.Cost()
					result["conditions"] = list.Encode()
				case isInvalid:
					result["error"] = map[string]any{
						"message": invalid.Error(),
						"path":    invalid.Path,
						"group":   invalid.Group,
						"condstr": invalid.Condstr,
						"field":   invalid.Field,
					}
				}
				if err := writeOutput(out, "json", result); err != nil {
					return err
				}
				return decodeErr
			}

			if decodeErr != nil {
				return decodeErr
			}
			fmt.Fprintf(out, "valid: %d conditions, cost %d\n", list.Len(), list.Cost())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json)")
	return cmd
}

type leafSummary struct {
	Path     string `json:"path"`
	Group    string `json:"group"`
	Condstr  string `json:"condstr"`
	Key      string `json:"key,omitempty"`
	Operator string `json:"operator,omitempty"`
	Cost     int    `json:"cost"`
}

func leafSummaries(list *conditions.CondList) []leafSummary {
	var out []leafSummary
	list.Walk(func(path string, leaf *conditions.Leaf) {
		out = append(out, leafSummary{
			Path:     path,
			Group:    leaf.Group,
			Condstr:  leaf.Condstr,
			Key:      leaf.Args.Key,
			Operator: leaf.Args.Operator,
			Cost:     leaf.Cost(),
		})
	})
	return out
}
