package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/pkg/eval"
)

func newEvalCmd() *cobra.Command {
	var (
		contextFile string
		budget      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "eval <version-id | chronicle-id/label>",
		Short: "Evaluate an expression against a data context",
		Long: `Eval resolves the reference and evaluates the expression bottom-up
against a data context read as JSON from --context ("-" for stdin).
Context values map dotted field paths to booleans, numbers, strings,
nulls, or arrays (sets).

Example:
  chronicle eval chr-discount/prod --context order.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0])
			if err != nil {
				return err
			}
			ctx, err := readContext(contextFile)
			if err != nil {
				return err
			}

			svc, detach, err := openService()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			defer detach()
			svc.CallBudget = budget

			value, err := svc.Evaluate(ref, ctx)
			if err != nil {
				return fmt.Errorf("evaluate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), value.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&contextFile, "context", "", `data context JSON file, or "-" for stdin`)
	cmd.Flags().DurationVar(&budget, "call-budget", 0, "wall-clock budget per registered function call (0 = unbounded)")
	return cmd
}

// readContext parses the data context file into evaluation values. A
// missing flag yields an empty context.
func readContext(path string) (eval.Context, error) {
	if path == "" {
		return eval.Context{}, nil
	}
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
		return nil, fmt.Errorf("read context: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse context: %w", err)
	}
	ctx := make(eval.Context, len(raw))
	for field, v := range raw {
		value, err := contextValue(v)
		if err != nil {
			return nil, fmt.Errorf("context field %s: %w", field, err)
		}
		ctx[field] = value
	}
	return ctx, nil
}

func contextValue(v any) (eval.Value, error) {
	switch t := v.(type) {
	case nil:
		return eval.NullVal(), nil
	case bool:
		return eval.BoolVal(t), nil
	case float64:
		return eval.NumVal(t), nil
	case string:
		return eval.StrVal(t), nil
	case []any:
		items := make([]eval.Value, 0, len(t))
		for _, each := range t {
			item, err := contextValue(each)
			if err != nil {
				return eval.Value{}, err
			}
			items = append(items, item)
		}
		return eval.SetVal(items...), nil
	default:
		return eval.Value{}, fmt.Errorf("unsupported value of type %T", v)
	}
}
