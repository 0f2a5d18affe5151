package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <artifact>",
	Short: "Recompute an artifact's checksum against its manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newBackupManager()
		if err != nil {
			return err
		}

		path := resolveArtifactPath(args[0])
		if err := mgr.Verify(path); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", filepath.Base(path))
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupVerifyCmd)
}
