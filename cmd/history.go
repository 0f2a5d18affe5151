package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the most recent purchases",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListRecentPurchases(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "history")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No purchases recorded.")
			return nil
		}

		formatPurchases(cmd.OutOrStdout(), recs)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "max purchases to display")
	rootCmd.AddCommand(historyCmd)
}

// formatPurchases writes a tabular purchase list to w, newest first.
// Money columns are rounded for the terminal; exports keep full precision.
func formatPurchases(out io.Writer, recs []model.PurchaseRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tPRODUCT\tSUPPLIER\tQTY\tUNIT\tDISCOUNT\tNET_COST")
	_, _ = fmt.Fprintln(w, "----\t-------\t--------\t---\t----\t--------\t--------")

	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Date.Format(model.DateLayout),
			r.ProductName,
			r.SupplierName,
			r.Quantity.String(),
			r.UnitPrice.StringFixed(2),
			r.Discount.String(),
			r.NetCost().StringFixed(2),
		)
	}
	_ = w.Flush()
}
