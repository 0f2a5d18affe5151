package main

import (
	"github.com/spf13/cobra"
)

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Snapshot the store into the backup directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		entry, err := mgr.Create(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}

func init() {
	backupCmd.AddCommand(backupCreateCmd)
}
