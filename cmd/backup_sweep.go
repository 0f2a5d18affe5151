package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete snapshots past the retention window",
	Long:  "Removes artifacts older than backup.retention_days, oldest first. The most recent intact snapshot survives regardless of age.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		removed, err := mgr.Sweep()
		if err != nil {
			return err
		}
		fmt.Printf("Swept %d expired backups.\n", removed)
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupSweepCmd)
}
