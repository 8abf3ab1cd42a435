package cmd

import (
	"fmt"

	"github.com/solatis/conditions/internal/conditions"
	"github.com/solatis/conditions/internal/core/store"
	"github.com/spf13/cobra"
)

func newEvalCommand(root *rootOptions) *cobra.Command {
	var (
		contextPath string
		setName     string
	)

	cmd := &cobra.Command{
		Use:   "eval [FILE]",
		Short: "Evaluate a condition document against a context",
		Long: `Eval decodes a condition document, or loads a stored condition set with
--set, and evaluates it against the context document. Prints true or false.`,
		Example: `  conditions eval rules.json --context event.json
  echo '{"score": 12}' | conditions eval rules.yaml --context -
  conditions eval --set high-score --context event.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (setName != "") {
				return fmt.Errorf("exactly one of FILE or --set required")
			}
			if len(args) == 1 && args[0] == "-" && contextPath == "-" {
				return fmt.Errorf("FILE and --context cannot both read stdin")
			}

			e, err := root.load(cmd)
			if err != nil {
				return err
			}

			var list *conditions.CondList
			if setName != "" {
				database, queries, err := e.openQueries(cmd.Context())
				if err != nil {
					return err
				}
				defer database.Close()

				set, err := store.New(queries, e.defs).GetByName(cmd.Context(), setName)
				if err != nil {
					return err
				}
				if list, err = conditions.DecodeJSON(set.Conditions, e.defs); err != nil {
					return err
				}
			} else {
				doc, err := readDocument(cmd.InOrStdin(), args[0])
				if err != nil {
					return err
				}
				if list, err = conditions.Decode(doc, e.defs); err != nil {
					return err
				}
			}

			evalCtx := conditions.Context{}
			if contextPath != "" {
				doc, err := readDocument(cmd.InOrStdin(), contextPath)
				if err != nil {
					return err
				}
				m, ok := doc.(map[string]any)
				if !ok {
					return fmt.Errorf("context must be an object")
				}
				evalCtx = m
			}

			result, err := list.Evaluate(evalCtx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&contextPath, "context", "", "context document (JSON or YAML, - for stdin)")
	cmd.Flags().StringVar(&setName, "set", "", "evaluate the stored condition set with this name")
	return cmd
}
