// Package report serializes analytics output and alerts to CSV and XLSX
// artifacts. Writers never mutate their inputs; decimal fields are written
// at full precision, never rounded.
package report

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/barstock/stock-cli/internal/model"
)

// Metadata is written as two leading rows before the column header, so an
// artifact records when and from what query it was produced.
type Metadata struct {
	GeneratedAt time.Time
	Filters     string
}

func (m Metadata) rows() [][]string {
	return [][]string{
		{"# generated_at", m.GeneratedAt.Format(time.RFC3339)},
		{"# filters", m.Filters},
	}
}

// volumeColumns defines the ordered volume report output columns.
var volumeColumns = []string{
	"product_id",
	"product_name",
	"purchase_count",
	"total_quantity",
	"total_spend",
	"average_price",
	"min_price",
	"min_price_supplier",
	"max_price",
	"max_price_supplier",
	"last_purchase",
	"savings_potential",
}

// comparisonColumns defines the ordered supplier comparison output columns.
// Product fields repeat on every row; savings_potential is carried on the
// best supplier's row.
var comparisonColumns = []string{
	"product_id",
	"product_name",
	"supplier_id",
	"supplier_name",
	"average_price",
	"min_price",
	"max_price",
	"price_range",
	"sample_count",
	"total_quantity",
	"last_purchase",
	"best",
	"savings_potential",
}

// alertColumns defines the ordered alert output columns.
var alertColumns = []string{
	"priority",
	"kind",
	"product_id",
	"product_name",
	"metric",
	"message",
	"timestamp",
}

// ExportVolumeCSV writes volume reports as a CSV artifact.
func ExportVolumeCSV(path string, reports []model.VolumeReport, meta Metadata) error {
	return writeCSV(path, meta, volumeColumns, volumeRows(reports))
}

// ExportComparisonCSV writes a supplier comparison as a CSV artifact.
func ExportComparisonCSV(path string, report *model.ComparisonReport, meta Metadata) error {
	return writeCSV(path, meta, comparisonColumns, comparisonRows(report))
}

// ExportAlertsCSV writes alerts as a CSV artifact.
func ExportAlertsCSV(path string, alerts []model.Alert, meta Metadata) error {
	return writeCSV(path, meta, alertColumns, alertRows(alerts))
}

func writeCSV(path string, meta Metadata, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)

	for _, row := range meta.rows() {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "report: write metadata")
		}
	}
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "report: write row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush")
	}
	return nil
}

// buildVolumeRow maps a VolumeReport to an output row.
func buildVolumeRow(r model.VolumeReport) []string {
	return []string{
		r.ProductID,
		r.ProductName,
		strconv.Itoa(r.PurchaseCount),
		r.TotalQuantity.String(),
		r.TotalSpend.String(),
		nullDecimalStr(r.AveragePrice),
		nullDecimalStr(r.MinPrice),
		r.MinPriceSupplier,
		nullDecimalStr(r.MaxPrice),
		r.MaxPriceSupplier,
		dateStr(r.LastPurchase),
		r.SavingsPotential.String(),
	}
}

func volumeRows(reports []model.VolumeReport) [][]string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, buildVolumeRow(r))
	}
	return rows
}

func comparisonRows(report *model.ComparisonReport) [][]string {
	if report == nil {
		return nil
	}

	rows := make([][]string, 0, len(report.Suppliers))
	for _, s := range report.Suppliers {
		savings := ""
		if s.Best {
			savings = report.SavingsPotential.String()
		}
		rows = append(rows, []string{
			report.ProductID,
			report.ProductName,
			s.SupplierID,
			s.SupplierName,
			s.AveragePrice.String(),
			s.MinPrice.String(),
			s.MaxPrice.String(),
			s.PriceRange.String(),
			strconv.Itoa(s.SampleCount),
			s.TotalQuantity.String(),
			s.LastPurchase.Format(model.DateLayout),
			strconv.FormatBool(s.Best),
			savings,
		})
	}
	return rows
}

func alertRows(alerts []model.Alert) [][]string {
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			string(a.Priority),
			string(a.Kind),
			a.SubjectID,
			a.ProductName,
			a.Metric.String(),
			a.Message,
			a.Timestamp.Format(time.RFC3339),
		})
	}
	return rows
}

// nullDecimalStr renders an undefined value as an empty cell, never as zero.
func nullDecimalStr(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func dateStr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(model.DateLayout)
}
