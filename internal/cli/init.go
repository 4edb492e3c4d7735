package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/paths"
	"github.com/mesh-intelligence/chronicle/pkg/sqlite"
	"github.com/mesh-intelligence/chronicle/pkg/types"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize chronicle storage",
		Long:  "Create configuration, snapshot, and data directories, then initialize the storage backend.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve config dir: %s", err))
	}
	if err := ensureConfigDir(configDir); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("create config directory: %s", err))
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("write config: %s", err))
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("load config: %s", err))
	}
	if err := os.MkdirAll(snapshotDir(configDir, cfg), 0o755); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("create snapshot directory: %s", err))
	}

	dataDir, err := paths.ResolveDataDir(flags.dataDir, cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("resolve data dir: %s", err))
	}

	// Initialize the data directory by attaching and detaching once.
	backend := sqlite.NewStore()
	if err := backend.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("initialize storage: %s", err))
	}
	if err := backend.Detach(); err != nil {
		return exitError(cmd, exitSysError, fmt.Sprintf("finalize storage: %s", err))
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Chronicle initialized successfully")
	return nil
}
