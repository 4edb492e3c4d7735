// Package cli implements the chronicle command-line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/paths"
	"github.com/mesh-intelligence/chronicle/pkg/dictionary"
	"github.com/mesh-intelligence/chronicle/pkg/ledger"
	"github.com/mesh-intelligence/chronicle/pkg/sqlite"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
}

var flags rootFlags

// NewRootCmd creates the top-level "chronicle" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chronicle",
		Short: "A versioned ledger for logical expressions",
		Long: "Chronicle stores immutable, content-addressed expression versions,\n" +
			"tracks their dependencies and referencers, and gates label moves\n" +
			"through impact analysis.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: .chronicle)")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "data directory (default: .chronicle-db)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd())
	root.AddCommand(newSaveCmd())
	root.AddCommand(newLabelCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newDepsCmd())
	root.AddCommand(newUsageCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newForkCmd())
	root.AddCommand(newRetireCmd())
	root.AddCommand(newSnapshotCmd())

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}

// openService attaches the SQLite store and builds the ledger service
// over it. The caller must call the returned detach func.
func openService() (*ledger.Service, func(), error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, err
	}
	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return nil, nil, fmt.Errorf("resolve data dir: %w", err)
	}

	backend := sqlite.NewStore()
	if err := backend.Attach(types.Config{
		Backend: cfg.GetString(cfgKeyBackend),
		DataDir: dataDir,
	}); err != nil {
		return nil, nil, fmt.Errorf("attach backend: %w", err)
	}

	snapshots := dictionary.NewDir(snapshotDir(configDir, cfg))
	svc := ledger.New(backend, snapshots, nil)
	return svc, func() { backend.Detach() }, nil
}

// parseRef interprets a reference argument: "chronicle/label" names a
// label pointer, anything else a pinned version id.
func parseRef(arg string) (types.Ref, error) {
	if chronicle, label, ok := strings.Cut(arg, "/"); ok {
		if chronicle == "" || label == "" {
			return types.Ref{}, fmt.Errorf("malformed reference %q (want <chronicle>/<label> or <version-id>)", arg)
		}
		return types.LabelRef(chronicle, label), nil
	}
	if arg == "" {
		return types.Ref{}, fmt.Errorf("empty reference")
	}
	return types.PinnedRef(arg), nil
}

// exitError prints the error to stderr and exits with the given code.
func exitError(cmd *cobra.Command, code int, msg string) error {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
	return nil // unreachable
}
