package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newForkCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "fork <version-id> <new-chronicle-id>",
		Short: "Clone a version into a new chronicle",
		Long: `Fork copies a version's content into a fresh chronicle, recording the
source version as provenance. The fork starts its own history; labels
and referencers of the source are not carried over.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			v, err := svc.Fork(args[0], args[1], author)
			if err != nil {
				return fmt.Errorf("fork version: %w", err)
			}
			return printVersion(cmd, v)
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "author recorded on the forked version")
	return cmd
}
