package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "resolve <version-id | chronicle-id/label>",
		Short: "Resolve a reference to its current version",
		Long: `Resolve looks up the version a reference names. A pinned version id
always yields the same version; a <chronicle>/<label> reference follows
the label directory and may yield different versions over time.

With --history, the referenced chronicle's full version list is printed
instead, oldest first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}

			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			v, err := svc.Resolve(ref)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", args[0], err)
			}

			if !history {
				return printVersion(cmd, v)
			}

			versions, err := svc.ListVersions(v.ChronicleID)
			if err != nil {
				return fmt.Errorf("list versions: %w", err)
			}
			return printVersionList(cmd, versions)
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "print the chronicle's full version list")
	return cmd
}
