package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type depOut struct {
	Type string `json:"dep_type"`
	Key  string `json:"dep_key"`
}

func newDepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps <version-id>",
		Short: "List a version's extracted dependencies",
		Long: `Deps prints the fields, functions, and nested expressions a version
statically references. The set was extracted from the AST when the
version was created and never changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			deps, err := svc.Dependencies(args[0])
			if err != nil {
				return fmt.Errorf("list dependencies: %w", err)
			}
			if flags.jsonMode {
				out := make([]depOut, 0, len(deps))
				for _, d := range deps {
					out = append(out, depOut{Type: d.Type, Key: d.Key})
				}
				return printJSON(cmd, out)
			}
			if len(deps) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dependencies.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tKEY")
			for _, d := range deps {
				fmt.Fprintf(w, "%s\t%s\n", d.Type, d.Key)
			}
			return w.Flush()
		},
	}
}
