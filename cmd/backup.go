package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage store snapshots",
	Long:  "Create, verify, restore, and sweep checksummed snapshots of the purchase store.",
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

// newBackupManager builds a manager for the configured store and backup dir.
func newBackupManager() (*backup.Manager, error) {
	return backup.NewManager(cfg.Store.Path, cfg.Backup)
}

// resolveArtifactPath lets subcommands name an artifact either by path or by
// bare file name relative to the backup directory.
func resolveArtifactPath(arg string) string {
	if _, err := os.Stat(arg); err == nil || filepath.Dir(arg) != "." {
		return arg
	}
	return filepath.Join(cfg.Backup.Dir, arg)
}
