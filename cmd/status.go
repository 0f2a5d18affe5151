package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/barstock/stock-cli/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a store overview",
	Long:  "Catalog sizes, total spend, recent activity, and the most purchased products and most used suppliers.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recentWindow, _ := cmd.Flags().GetDuration("recent")

		ov, err := st.Overview(ctx, time.Now().Add(-recentWindow))
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatOverview(cmd.OutOrStdout(), ov, recentWindow)
		return nil
	},
}

func init() {
	statusCmd.Flags().Duration("recent", 7*24*time.Hour, "window for the recent-purchases count (e.g. 24h, 168h)")
	rootCmd.AddCommand(statusCmd)
}

// formatOverview writes the store overview to w.
func formatOverview(out io.Writer, ov *store.Overview, recentWindow time.Duration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Products:\t%d\n", ov.Products)
	_, _ = fmt.Fprintf(w, "Suppliers:\t%d\n", ov.Suppliers)
	_, _ = fmt.Fprintf(w, "Purchases:\t%d\n", ov.Purchases)
	_, _ = fmt.Fprintf(w, "Total spend:\t%s\n", ov.TotalSpend.StringFixed(2))
	_, _ = fmt.Fprintf(w, "Purchases in last %s:\t%d\n", recentWindow, ov.RecentPurchases)

	if len(ov.TopProducts) > 0 {
		_, _ = fmt.Fprintln(w, "Top products:")
		for _, p := range ov.TopProducts {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", p.Name, p.Count)
		}
	}
	if len(ov.TopSuppliers) > 0 {
		_, _ = fmt.Fprintln(w, "Top suppliers:")
		for _, s := range ov.TopSuppliers {
			_, _ = fmt.Fprintf(w, "  %s\t%d\n", s.Name, s.Count)
		}
	}
	_ = w.Flush()
}
