package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/backup"
)

var backupWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run scheduled backup cycles until interrupted",
	Long:  "Hosts the backup scheduler: every backup.interval it snapshots the store, verifies the artifact, and sweeps expired entries. A failed cycle is logged and never blocks the next.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		backup.NewScheduler(mgr, cfg.Backup.Interval).Run(ctx)
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupWatchCmd)
}
