package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/barstock/stock-cli/internal/alerting"
	"github.com/barstock/stock-cli/internal/analytics"
	"github.com/barstock/stock-cli/internal/report"
)

var (
	alertsFrom    string
	alertsTo      string
	alertsCSVOut  string
	alertsXLSXOut string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate threshold alerts against purchase history",
	Long:  "Runs volume analytics over the period (default: all history) and classifies the results against the configured thresholds. Products never purchased are included so staleness can flag them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		from := alertsFrom
		if from == "" {
			from = "1970-01-01"
		}
		period, err := parsePeriod(from, alertsTo)
		if err != nil {
			return err
		}

		engine, err := alerting.NewEngine(cfg.Thresholds)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		reports, err := analytics.AnalyzeVolume(ctx, st, analytics.VolumeRequest{
			Period:             period,
			IncludeUnpurchased: true,
		})
		if err != nil {
			return err
		}

		alerts := engine.Evaluate(reports, time.Now())
		zap.L().Info("alerts evaluated",
			zap.Int("reports", len(reports)),
			zap.Int("alerts", len(alerts)),
		)

		meta := report.Metadata{
			GeneratedAt: time.Now().UTC(),
			Filters:     periodFilter(period),
		}
		if alertsCSVOut != "" {
			path, err := exportPath(alertsCSVOut)
			if err != nil {
				return err
			}
			if err := report.ExportAlertsCSV(path, alerts, meta); err != nil {
				return err
			}
			zap.L().Info("alert report written", zap.String("path", path))
		}
		if alertsXLSXOut != "" {
			path, err := exportPath(alertsXLSXOut)
			if err != nil {
				return err
			}
			if err := report.ExportAlertsXLSX(path, alerts, meta); err != nil {
				return err
			}
			zap.L().Info("alert report written", zap.String("path", path))
		}

		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts.")
			return nil
		}
		return printJSON(alerts)
	},
}

func init() {
	alertsCmd.Flags().StringVar(&alertsFrom, "from", "", "period start, YYYY-MM-DD (default 1970-01-01)")
	alertsCmd.Flags().StringVar(&alertsTo, "to", "", "period end, YYYY-MM-DD (default today)")
	alertsCmd.Flags().StringVar(&alertsCSVOut, "csv", "", "write alerts as CSV (bare names land in export.dir)")
	alertsCmd.Flags().StringVar(&alertsXLSXOut, "xlsx", "", "write alerts as XLSX (bare names land in export.dir)")
	rootCmd.AddCommand(alertsCmd)
}
