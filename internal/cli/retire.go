package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func newRetireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retire <chronicle-id>",
		Short: "Retire a chronicle and delete its versions",
		Long: `Retire removes a chronicle's versions, labels, dependencies, and
outgoing usage entries. Retirement is refused while any referencer
outside the chronicle still depends on one of its versions or labels.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			if err := svc.RetireChronicle(args[0]); err != nil {
				if errors.Is(err, types.ErrChronicleInUse) {
					return fmt.Errorf("chronicle %s still has referencers; withdraw them first: %w", args[0], err)
				}
				return fmt.Errorf("retire chronicle: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chronicle %s retired\n", args[0])
			return nil
		},
	}
}
