package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/model"
)

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <artifact>",
	Short: "Replace the live store with a verified snapshot",
	Long:  "Verifies the artifact, takes a safety backup of the current store, then atomically swaps the restored content in. Corrupt or unverifiable artifacts are refused with the live store untouched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		path := resolveArtifactPath(args[0])
		safety, err := mgr.Restore(cmd.Context(), path)
		if err != nil {
			return err
		}

		return printJSON(struct {
			Restored     string             `json:"restored"`
			Store        string             `json:"store"`
			SafetyBackup *model.BackupEntry `json:"safety_backup,omitempty"`
		}{filepath.Base(path), cfg.Store.Path, safety})
	},
}

func init() {
	backupCmd.AddCommand(backupRestoreCmd)
}
