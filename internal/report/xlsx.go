package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/barstock/stock-cli/internal/model"
)

// ExportVolumeXLSX writes volume reports as an XLSX workbook.
func ExportVolumeXLSX(path string, reports []model.VolumeReport, meta Metadata) error {
	return writeXLSX(path, "volume", meta, volumeColumns, volumeRows(reports))
}

// ExportComparisonXLSX writes a supplier comparison as an XLSX workbook.
func ExportComparisonXLSX(path string, report *model.ComparisonReport, meta Metadata) error {
	return writeXLSX(path, "comparison", meta, comparisonColumns, comparisonRows(report))
}

// ExportAlertsXLSX writes alerts as an XLSX workbook.
func ExportAlertsXLSX(path string, alerts []model.Alert, meta Metadata) error {
	return writeXLSX(path, "alerts", meta, alertColumns, alertRows(alerts))
}

// writeXLSX lays out the same rows as the CSV path on a single sheet, cells
// as strings so decimal precision survives spreadsheet round-trips.
func writeXLSX(path, sheetName string, meta Metadata, header []string, rows [][]string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	for _, row := range meta.rows() {
		addRow(sheet, row)
	}
	addRow(sheet, header)
	for _, row := range rows {
		addRow(sheet, row)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save file")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		cell.SetString(v)
	}
}
