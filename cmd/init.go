package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the purchase store and apply the schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		zap.L().Info("store initialized", zap.String("path", cfg.Store.Path))
		fmt.Printf("Store initialized at %s\n", cfg.Store.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
