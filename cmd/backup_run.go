package main

import (
	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/backup"
	"github.com/barstock/stock-cli/internal/model"
)

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backup cycle (create, verify, sweep)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		entry, swept, err := backup.NewScheduler(mgr, cfg.Backup.Interval).Cycle(cmd.Context())
		if err != nil {
			return err
		}

		return printJSON(struct {
			Artifact *model.BackupEntry `json:"artifact"`
			Swept    int                `json:"swept"`
		}{entry, swept})
	},
}

func init() {
	backupCmd.AddCommand(backupRunCmd)
}
