package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/barstock/stock-cli/internal/analytics"
	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
	"github.com/barstock/stock-cli/internal/report"
)

var (
	compareFrom        string
	compareTo          string
	compareProduct     string
	compareAll         bool
	compareConcurrency int
	compareCSVOut      string
	compareXLSXOut     string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Rank a product's suppliers by average net price",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		period, err := parsePeriod(compareFrom, compareTo)
		if err != nil {
			return err
		}
		if compareAll == (compareProduct != "") {
			return errs.Validationf("exactly one of --product or --all is required")
		}
		if compareAll && (compareCSVOut != "" || compareXLSXOut != "") {
			return errs.Validationf("--csv/--xlsx export needs a single --product")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if compareAll {
			products, err := st.ListProducts(ctx)
			if err != nil {
				return eris.Wrap(err, "compare: list products")
			}

			// Engines are read-only, so per-product comparisons fan out.
			g, gCtx := errgroup.WithContext(ctx)
			g.SetLimit(compareConcurrency)

			var mu sync.Mutex
			var reports []*model.ComparisonReport
			for i := range products {
				i := i
				g.Go(func() error {
					rep, err := analytics.CompareSuppliers(gCtx, st, analytics.CompareRequest{
						ProductID: products[i].ID,
						Period:    period,
					})
					if err != nil {
						return err
					}
					if len(rep.Suppliers) == 0 {
						return nil
					}
					mu.Lock()
					reports = append(reports, rep)
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			sortComparisons(reports)
			if len(reports) == 0 {
				fmt.Fprintln(os.Stderr, "No purchases in period.")
				return nil
			}
			return printJSON(reports)
		}

		p, err := resolveProduct(ctx, st, compareProduct)
		if err != nil {
			return err
		}
		rep, err := analytics.CompareSuppliers(ctx, st, analytics.CompareRequest{
			ProductID: p.ID,
			Period:    period,
		})
		if err != nil {
			return err
		}

		meta := report.Metadata{
			GeneratedAt: time.Now().UTC(),
			Filters:     strings.Join([]string{periodFilter(period), "product=" + p.ID}, " "),
		}
		if compareCSVOut != "" {
			path, err := exportPath(compareCSVOut)
			if err != nil {
				return err
			}
			if err := report.ExportComparisonCSV(path, rep, meta); err != nil {
				return err
			}
			zap.L().Info("comparison report written", zap.String("path", path))
		}
		if compareXLSXOut != "" {
			path, err := exportPath(compareXLSXOut)
			if err != nil {
				return err
			}
			if err := report.ExportComparisonXLSX(path, rep, meta); err != nil {
				return err
			}
			zap.L().Info("comparison report written", zap.String("path", path))
		}

		return printJSON(rep)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareFrom, "from", "", "period start, YYYY-MM-DD (required)")
	compareCmd.Flags().StringVar(&compareTo, "to", "", "period end, YYYY-MM-DD (default today)")
	compareCmd.Flags().StringVar(&compareProduct, "product", "", "product to compare (id or exact name)")
	compareCmd.Flags().BoolVar(&compareAll, "all", false, "compare every product with purchases in the period")
	compareCmd.Flags().IntVar(&compareConcurrency, "concurrency", 4, "max products to compare concurrently with --all")
	compareCmd.Flags().StringVar(&compareCSVOut, "csv", "", "write the report as CSV (bare names land in export.dir)")
	compareCmd.Flags().StringVar(&compareXLSXOut, "xlsx", "", "write the report as XLSX (bare names land in export.dir)")
	_ = compareCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(compareCmd)
}

// sortComparisons orders fan-out results by savings potential descending,
// product id ascending on ties, so the biggest opportunity prints first.
func sortComparisons(reports []*model.ComparisonReport) {
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].SavingsPotential.Equal(reports[j].SavingsPotential) {
			return reports[i].SavingsPotential.GreaterThan(reports[j].SavingsPotential)
		}
		return reports[i].ProductID < reports[j].ProductID
	})
}
