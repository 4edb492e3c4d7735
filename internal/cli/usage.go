package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/types"
)

type usageOut struct {
	Target              string `json:"target"`
	ReferencerType      string `json:"referencer_type"`
	ReferencerID        string `json:"referencer_id"`
	ReferencerVersionID string `json:"referencer_version_id"`
	Role                string `json:"role"`
	Path                string `json:"path,omitempty"`
	RecordedAt          string `json:"recorded_at"`
}

func newUsageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage <version-id | chronicle-id/label>",
		Short: "List the referencers of an expression",
		Long: `Usage queries the reverse index: everything known to depend on the
given version or label pointer. Repointing a label consults exactly this
set during impact analysis.`,
		Args: cobra.ExactArgs(1),
		RunE: runUsageQuery,
	}
	cmd.AddCommand(newUsageRecordCmd())
	cmd.AddCommand(newUsageWithdrawCmd())
	return cmd
}

func runUsageQuery(cmd *cobra.Command, args []string) error {
	ref, err := parseRef(args[0])
	if err != nil {
		return err
	}

	svc, detach, err := openService()
	if err != nil {
		return exitError(cmd, exitSysError, err.Error())
	}
	defer detach()

	usages, err := svc.QueryUsage(ref)
	if err != nil {
		return fmt.Errorf("query usage: %w", err)
	}

	if flags.jsonMode {
		out := make([]usageOut, 0, len(usages))
		for _, u := range usages {
			out = append(out, usageOut{
				Target:              usageTarget(u),
				ReferencerType:      u.ReferencerType,
				ReferencerID:        u.ReferencerID,
				ReferencerVersionID: u.ReferencerVersionID,
				Role:                u.Role,
				Path:                u.Path,
				RecordedAt:          u.RecordedAt.Format(time.RFC3339),
			})
		}
		return printJSON(cmd, out)
	}

	if len(usages) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No referencers.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCER\tID\tVERSION\tROLE\tTARGET")
	for _, u := range usages {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			u.ReferencerType, u.ReferencerID, shortID(u.ReferencerVersionID),
			u.Role, usageTarget(u))
	}
	return w.Flush()
}

// usageTarget renders the pinned-or-by-label discriminant as one string.
func usageTarget(u types.Usage) string {
	if u.RefKind == types.RefByLabel {
		return u.ChronicleID + "/" + u.LabelName
	}
	return u.VersionID
}

func newUsageRecordCmd() *cobra.Command {
	var (
		role string
		path string
	)

	cmd := &cobra.Command{
		Use:   "record <version-id | chronicle-id/label> <referencer-type> <referencer-id> <referencer-version-id>",
		Short: "Record an external referencer of an expression",
		Long: `Record registers that an external entity (a rule, form, report) depends
on an expression. By-label referencers participate in impact analysis on
every repoint of that label.`,
		Args: cobra.ExactArgs(4),
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

			u := types.Usage{
				RefKind:             ref.Kind,
				VersionID:           ref.VersionID,
				ChronicleID:         ref.ChronicleID,
				LabelName:           ref.LabelName,
				ReferencerType:      args[1],
				ReferencerID:        args[2],
				ReferencerVersionID: args[3],
				Role:                role,
				Path:                path,
			}
			if err := svc.RecordUsage(u); err != nil {
				return fmt.Errorf("record usage: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Usage recorded")
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "condition", "how the referencer uses the expression")
	cmd.Flags().StringVar(&path, "path", "", "structural location within the referencer")
	return cmd
}

func newUsageWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <referencer-type> <referencer-id>",
		Short: "Withdraw all usage entries of a referencer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			if err := svc.RemoveUsage(args[0], args[1]); err != nil {
				return fmt.Errorf("withdraw usage: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Usage withdrawn")
			return nil
		},
	}
}
