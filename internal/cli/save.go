package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/ast"
	"github.com/mesh-intelligence/chronicle/pkg/ledger"
)

func newSaveCmd() *cobra.Command {
	var (
		astFile    string
		snapshotID string
		dslText    string
		antecedent string
		branch     string
		author     string
	)

	cmd := &cobra.Command{
		Use:   "save <chronicle-id>",
		Short: "Append an expression version to a chronicle",
		Long: `Save typechecks an expression AST against its dictionary snapshot and
appends it as a new immutable version. The AST is read as canonical JSON
from --ast-file ("-" for stdin). Creating identical content under the
same antecedent returns the existing version.

Example:
  chronicle save chr-discount --ast-file expr.json --snapshot dict-v3 --antecedent 0192ab...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := readAST(astFile)
			if err != nil {
				return err
			}

			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()

			v, err := svc.CreateVersion(ledger.CreateRequest{
				ChronicleID:          args[0],
				AntecedentID:         antecedent,
				BranchID:             branch,
				DSLText:              dslText,
				AST:                  node,
				DictionarySnapshotID: snapshotID,
				CreatedBy:            author,
			})
			if err != nil {
				return fmt.Errorf("save version: %w", err)
			}
			return printVersion(cmd, v)
		},
	}

	cmd.Flags().StringVar(&astFile, "ast-file", "", `AST JSON file, or "-" for stdin (required)`)
	cmd.Flags().StringVar(&snapshotID, "snapshot", "", "dictionary snapshot id (required)")
	cmd.Flags().StringVar(&dslText, "dsl", "", "original DSL text of the expression")
	cmd.Flags().StringVar(&antecedent, "antecedent", "", "version id this one extends")
	cmd.Flags().StringVar(&branch, "branch", "", "version id this one forks from")
	cmd.Flags().StringVar(&author, "author", "", "author recorded on the version")
	cmd.MarkFlagRequired("ast-file")
	cmd.MarkFlagRequired("snapshot")

	return cmd
}

func readAST(path string) (ast.Node, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read ast: %w", err)
	}
	node, err := ast.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode ast: %w", err)
	}
	return node, nil
}
