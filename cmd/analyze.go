package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/barstock/stock-cli/internal/analytics"
	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
	"github.com/barstock/stock-cli/internal/report"
	"github.com/barstock/stock-cli/internal/store"
)

var (
	analyzeFrom        string
	analyzeTo          string
	analyzeProduct     string
	analyzeUnpurchased bool
	analyzeCSVOut      string
	analyzeXLSXOut     string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Aggregate purchase volume and price metrics per product",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		period, err := parsePeriod(analyzeFrom, analyzeTo)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		req := analytics.VolumeRequest{
			Period:             period,
			IncludeUnpurchased: analyzeUnpurchased,
		}
		filters := []string{periodFilter(period)}
		if analyzeProduct != "" {
			p, err := resolveProduct(ctx, st, analyzeProduct)
			if err != nil {
				return err
			}
			req.ProductID = p.ID
			filters = append(filters, "product="+p.ID)
		}

		reports, err := analytics.AnalyzeVolume(ctx, st, req)
		if err != nil {
			return err
		}

		meta := report.Metadata{
			GeneratedAt: time.Now().UTC(),
			Filters:     strings.Join(filters, " "),
		}
		if analyzeCSVOut != "" {
			path, err := exportPath(analyzeCSVOut)
			if err != nil {
				return err
			}
			if err := report.ExportVolumeCSV(path, reports, meta); err != nil {
				return err
			}
			zap.L().Info("volume report written", zap.String("path", path))
		}
		if analyzeXLSXOut != "" {
			path, err := exportPath(analyzeXLSXOut)
			if err != nil {
				return err
			}
			if err := report.ExportVolumeXLSX(path, reports, meta); err != nil {
				return err
			}
			zap.L().Info("volume report written", zap.String("path", path))
		}

		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No purchases in period.")
			return nil
		}
		return printJSON(reports)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFrom, "from", "", "period start, YYYY-MM-DD (required)")
	analyzeCmd.Flags().StringVar(&analyzeTo, "to", "", "period end, YYYY-MM-DD (default today)")
	analyzeCmd.Flags().StringVar(&analyzeProduct, "product", "", "restrict to one product (id or exact name)")
	analyzeCmd.Flags().BoolVar(&analyzeUnpurchased, "include-unpurchased", false, "include catalog products with no purchases in the period")
	analyzeCmd.Flags().StringVar(&analyzeCSVOut, "csv", "", "write the report as CSV (bare names land in export.dir)")
	analyzeCmd.Flags().StringVar(&analyzeXLSXOut, "xlsx", "", "write the report as XLSX (bare names land in export.dir)")
	_ = analyzeCmd.MarkFlagRequired("from")
	rootCmd.AddCommand(analyzeCmd)
}

// parsePeriod builds a validated period from the --from/--to flag values.
// An empty to bound defaults to today.
func parsePeriod(fromStr, toStr string) (model.Period, error) {
	from, err := time.Parse(model.DateLayout, fromStr)
	if err != nil {
		return model.Period{}, errs.Validationf("invalid --from %q, want YYYY-MM-DD", fromStr)
	}

	if toStr == "" {
		toStr = time.Now().Format(model.DateLayout)
	}
	to, err := time.Parse(model.DateLayout, toStr)
	if err != nil {
		return model.Period{}, errs.Validationf("invalid --to %q, want YYYY-MM-DD", toStr)
	}

	p := model.Period{From: from, To: to}
	if err := p.Validate(); err != nil {
		return model.Period{}, errs.NewValidation(err)
	}
	return p, nil
}

func periodFilter(p model.Period) string {
	return fmt.Sprintf("period=%s..%s",
		p.From.Format(model.DateLayout), p.To.Format(model.DateLayout))
}

// resolveProduct accepts a product id or an exact product name.
func resolveProduct(ctx context.Context, st store.Store, arg string) (*model.Product, error) {
	p, err := st.GetProduct(ctx, arg)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p, err = st.GetProductByName(ctx, arg)
		if err != nil {
			return nil, err
		}
	}
	if p == nil {
		return nil, errs.Validationf("unknown product %q", arg)
	}
	return p, nil
}

// exportPath places bare file names under the configured export directory;
// paths with a directory component are used as given.
func exportPath(name string) (string, error) {
	if filepath.Dir(name) != "." {
		return name, nil
	}
	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return "", eris.Wrap(err, "create export dir")
	}
	return filepath.Join(cfg.Export.Dir, name), nil
}
