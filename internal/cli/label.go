package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

type labelOut struct {
	ChronicleID string `json:"chronicle_id"`
	LabelName   string `json:"label_name"`
	VersionID   string `json:"expression_version_id"`
	UpdatedAt   string `json:"updated_at"`
}

func renderLabel(l *types.Label) labelOut {
	return labelOut{
		ChronicleID: l.ChronicleID,
		LabelName:   l.LabelName,
		VersionID:   l.VersionID,
		UpdatedAt:   l.UpdatedAt.Format(time.RFC3339),
	}
}

func newLabelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage a chronicle's labels",
	}
	cmd.AddCommand(newLabelSetCmd())
	cmd.AddCommand(newLabelGetCmd())
	cmd.AddCommand(newLabelListCmd())
	return cmd
}

func newLabelSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <chronicle-id> <label-name> <version-id>",
		Short: "Point a label at a version",
		Long: `Set moves a label to a version in the same chronicle. The move is
gated: it is refused when it would introduce a reference cycle or break
a dependent that references the label. Blocked moves report every
affected dependent and leave the label untouched.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			label, err := svc.RepointLabel(args[0], args[1], args[2])
			if err != nil {
				var blocked *types.ImpactBlockedError
				if errors.As(err, &blocked) {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", blocked)
					for _, r := range blocked.Reports {
						fmt.Fprintf(cmd.ErrOrStderr(), "  %s %s (version %s): %s\n",
							r.ReferencerType, r.ReferencerID, r.ReferencerVersionID, r.Reason)
					}
					return fmt.Errorf("label not moved")
				}
				var cycle *types.CycleError
				if errors.As(err, &cycle) {
					return fmt.Errorf("label not moved: %w", cycle)
				}
				return fmt.Errorf("set label: %w", err)
			}
			return printLabel(cmd, label)
		},
	}
}

func newLabelGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <chronicle-id> <label-name>",
		Short: "Show a label's current target",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			label, err := svc.GetLabel(args[0], args[1])
			if err != nil {
				return fmt.Errorf("get label: %w", err)
			}
			return printLabel(cmd, label)
		},
	}
}

func newLabelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <chronicle-id>",
		Short: "List a chronicle's labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			labels, err := svc.ListLabels(args[0])
			if err != nil {
				return fmt.Errorf("list labels: %w", err)
			}
			return printLabelList(cmd, labels)
		},
	}
}
