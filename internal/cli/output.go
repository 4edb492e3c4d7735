// Output rendering for the chronicle CLI. Every command prints a
// human-readable form by default and the full JSON shape under --json.
package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// versionOut is the wire shape of a version in JSON output. The AST is
// embedded in its canonical JSON encoding.
type versionOut struct {
	VersionID            string          `json:"expression_version_id"`
	ChronicleID          string          `json:"chronicle_id"`
	AntecedentID         string          `json:"antecedent_id,omitempty"`
	BranchID             string          `json:"branch_id,omitempty"`
	DSLText              string          `json:"dsl_text,omitempty"`
	AST                  json.RawMessage `json:"ast"`
	ASTHash              string          `json:"ast_hash"`
	DictionarySnapshotID string          `json:"dictionary_snapshot_id"`
	CreatedBy            string          `json:"created_by,omitempty"`
	CreatedAt            string          `json:"created_at"`
}

func renderVersion(v *types.ExpressionVersion) (versionOut, error) {
	astJSON, err := ast.Encode(v.AST)
	if err != nil {
		return versionOut{}, fmt.Errorf("encode ast: %w", err)
	}
	return versionOut{
		VersionID:            v.VersionID,
		ChronicleID:          v.ChronicleID,
		AntecedentID:         v.AntecedentID,
		BranchID:             v.BranchID,
		DSLText:              v.DSLText,
		AST:                  astJSON,
		ASTHash:              v.ASTHash,
		DictionarySnapshotID: v.DictionarySnapshotID,
		CreatedBy:            v.CreatedBy,
		CreatedAt:            v.CreatedAt.Format(time.RFC3339),
	}, nil
}

func printVersion(cmd *cobra.Command, v *types.ExpressionVersion) error {
	if flags.jsonMode {
		out, err := renderVersion(v)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Version:    %s\n", v.VersionID)
	fmt.Fprintf(w, "Chronicle:  %s\n", v.ChronicleID)
	if v.AntecedentID != "" {
		fmt.Fprintf(w, "Antecedent: %s\n", v.AntecedentID)
	}
	if v.BranchID != "" {
		fmt.Fprintf(w, "Branch of:  %s\n", v.BranchID)
	}
	fmt.Fprintf(w, "AST hash:   %s\n", v.ASTHash)
	fmt.Fprintf(w, "Snapshot:   %s\n", v.DictionarySnapshotID)
	if v.DSLText != "" {
		fmt.Fprintf(w, "DSL:        %s\n", v.DSLText)
	}
	if v.CreatedBy != "" {
		fmt.Fprintf(w, "Author:     %s\n", v.CreatedBy)
	}
	fmt.Fprintf(w, "Created:    %s\n", v.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func printVersionList(cmd *cobra.Command, versions []*types.ExpressionVersion) error {
	if flags.jsonMode {
		out := make([]versionOut, 0, len(versions))
		for _, v := range versions {
			rendered, err := renderVersion(v)
			if err != nil {
				return err
			}
			out = append(out, rendered)
		}
		return printJSON(cmd, out)
	}

	if len(versions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No versions found.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tHASH\tANTECEDENT\tCREATED")
	for _, v := range versions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			shortID(v.VersionID), shortID(v.ASTHash), shortID(v.AntecedentID),
			v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func printLabel(cmd *cobra.Command, l *types.Label) error {
	if flags.jsonMode {
		return printJSON(cmd, renderLabel(l))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s/%s -> %s (updated %s)\n",
		l.ChronicleID, l.LabelName, l.VersionID, l.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func printLabelList(cmd *cobra.Command, labels []*types.Label) error {
	if flags.jsonMode {
		out := make([]labelOut, 0, len(labels))
		for _, l := range labels {
			out = append(out, renderLabel(l))
		}
		return printJSON(cmd, out)
	}

	if len(labels) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No labels found.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tVERSION\tUPDATED")
	for _, l := range labels {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			l.LabelName, shortID(l.VersionID), l.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// shortID truncates ids and hashes for table output.
func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
