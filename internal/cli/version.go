package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the CLI release version, overridable at build time via
// -ldflags "-X ...cli.Version=...".
var Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/chronicle"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the chronicle version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "chronicle v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}
