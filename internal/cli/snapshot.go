package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/chronicle/internal/paths"
	"github.com/mesh-intelligence/chronicle/pkg/dictionary"
	"github.com/mesh-intelligence/chronicle/pkg/typecheck"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage dictionary snapshots",
	}
	cmd.AddCommand(newSnapshotImportCmd())
	cmd.AddCommand(newSnapshotShowCmd())
	return cmd
}

// openSnapshots resolves the snapshot directory from config.
func openSnapshots() (*dictionary.Dir, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, err
	}
	return dictionary.NewDir(snapshotDir(configDir, cfg)), nil
}

func newSnapshotImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot-file.json>",
		Short: "Import a dictionary snapshot file",
		Long: `Import validates a snapshot file (field paths mapped to type names)
and installs it under its snapshot_id. Snapshots are write-once: an id
that already exists is refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}
			var file struct {
				SnapshotID string            `json:"snapshot_id"`
				Fields     map[string]string `json:"fields"`
			}
			if err := json.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse snapshot: %w", err)
			}
			if file.SnapshotID == "" {
				return fmt.Errorf("snapshot file has no snapshot_id")
			}

			fields := make(map[string]typecheck.Type, len(file.Fields))
			for path, name := range file.Fields {
				t, err := dictionary.ParseType(name)
				if err != nil {
					return fmt.Errorf("field %s: %w", path, err)
				}
				fields[path] = t
			}

			snapshots, err := openSnapshots()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			if err := snapshots.Write(&dictionary.Snapshot{ID: file.SnapshotID, Fields: fields}); err != nil {
				return fmt.Errorf("install snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s installed (%d fields)\n", file.SnapshotID, len(fields))
			return nil
		},
	}
}

func newSnapshotShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <snapshot-id>",
		Short: "Show a dictionary snapshot's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshots, err := openSnapshots()
			if err != nil {
				return exitError(cmd, exitSysError, err.Error())
			}
			snap, err := snapshots.Snapshot(args[0])
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			fieldPaths := make([]string, 0, len(snap.Fields))
			for path := range snap.Fields {
				fieldPaths = append(fieldPaths, path)
			}
			sort.Strings(fieldPaths)

			if flags.jsonMode {
				out := struct {
					SnapshotID string            `json:"snapshot_id"`
					Fields     map[string]string `json:"fields"`
				}{SnapshotID: snap.ID, Fields: make(map[string]string, len(snap.Fields))}
				for _, path := range fieldPaths {
					out.Fields[path] = snap.Fields[path].String()
				}
				return printJSON(cmd, out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s (%d fields)\n", snap.ID, len(fieldPaths))
			for _, path := range fieldPaths {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", path, snap.Fields[path].String())
			}
			return nil
		},
	}
}
