package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/ingest"
)

var (
	importCSVPath  string
	importEncoding string
	importStrict   bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import purchases from a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		f, err := os.Open(importCSVPath)
		if err != nil {
			return eris.Wrap(err, "import: open csv")
		}
		defer f.Close() //nolint:errcheck

		result, err := ingest.ImportCSV(ctx, f, st, ingest.Options{
			Encoding: importEncoding,
			Strict:   importStrict,
			Now:      time.Now(),
		})
		if err != nil {
			return err
		}

		return printJSON(result)
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importEncoding, "encoding", "", "source charset (e.g. latin1, windows-1252); default UTF-8")
	importCmd.Flags().BoolVar(&importStrict, "strict", false, "reject rows whose product or supplier is not already in the catalog")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
