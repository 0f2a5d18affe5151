package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/model"
)

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		entries, err := mgr.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No backups found.")
			return nil
		}

		formatBackups(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupListCmd)
}

// formatBackups writes a tabular snapshot list to w.
func formatBackups(out io.Writer, entries []model.BackupEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCREATED\tBYTES\tFORMAT\tSTATE\tCHECKSUM")
	_, _ = fmt.Fprintln(w, "----\t-------\t-----\t------\t-----\t--------")

	for _, e := range entries {
		format := "plain"
		if e.Compressed {
			format = "gzip"
		}
		state := "ok"
		if e.Corrupt {
			state = "corrupt"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			e.Name,
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.SizeBytes,
			format,
			state,
			truncateSum(e.Checksum),
		)
	}
	_ = w.Flush()
}

// truncateSum returns the first 12 hex characters for compact display.
func truncateSum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
