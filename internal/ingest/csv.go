// Package ingest loads purchase history from delimited files into the store.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
)

// importColumns is the required header of an import file, in order.
var importColumns = []string{"product", "supplier", "quantity", "unit_price", "discount", "date"}

// dateLayouts are tried in order when parsing the date field. Exports carry
// ISO dates; files out of spreadsheets commonly carry day-first dates.
var dateLayouts = []string{model.DateLayout, "02/01/2006"}

// Catalog is the slice of the store the importer needs.
type Catalog interface {
	GetProductByName(ctx context.Context, name string) (*model.Product, error)
	CreateProduct(ctx context.Context, name string) (*model.Product, error)
	GetSupplierByName(ctx context.Context, name string) (*model.Supplier, error)
	CreateSupplier(ctx context.Context, name string) (*model.Supplier, error)
	CreatePurchases(ctx context.Context, recs []model.PurchaseRecord) (int, error)
}

// Options configures an import run.
type Options struct {
	// Encoding names the source charset, any name
	// golang.org/x/text/encoding/htmlindex knows ("latin1",
	// "windows-1252"). Empty means UTF-8.
	Encoding string
	// Strict rejects rows naming products or suppliers missing from the
	// catalog instead of creating them.
	Strict bool
	// Now anchors date validation. Zero means time.Now().
	Now time.Time
}

// Result reports what an import changed.
type Result struct {
	Imported         int `json:"imported"`
	ProductsCreated  int `json:"products_created"`
	SuppliersCreated int `json:"suppliers_created"`
}

// row is a parsed line awaiting catalog resolution.
type row struct {
	line     int
	product  string
	supplier string
	rec      model.PurchaseRecord
}

// ImportCSV parses, validates, and stores purchase rows. Every row is
// validated before any purchase is written, so a bad row aborts the import
// with its line number; the write itself is one transaction.
func ImportCSV(ctx context.Context, r io.Reader, cat Catalog, opts Options) (*Result, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	if opts.Encoding != "" {
		enc, err := htmlindex.Get(opts.Encoding)
		if err != nil {
			return nil, eris.Wrapf(err, "import: unsupported encoding %q", opts.Encoding)
		}
		r = enc.NewDecoder().Reader(r)
	}

	rows, err := parseRows(ctx, r, now)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if err := resolveCatalog(ctx, cat, rows, opts.Strict, result); err != nil {
		return nil, err
	}

	recs := make([]model.PurchaseRecord, 0, len(rows))
	for _, rw := range rows {
		recs = append(recs, rw.rec)
	}

	n, err := cat.CreatePurchases(ctx, recs)
	if err != nil {
		return nil, eris.Wrap(err, "import: store purchases")
	}
	result.Imported = n

	zap.L().Info("import complete",
		zap.Int("imported", result.Imported),
		zap.Int("products_created", result.ProductsCreated),
		zap.Int("suppliers_created", result.SuppliersCreated),
	)
	return result, nil
}

func parseRows(ctx context.Context, r io.Reader, now time.Time) ([]row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errs.Validationf("import: file is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "import: read header")
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var rows []row
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "import: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "import: read row %d", line)
		}

		rw, err := parseRow(line, record, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, *rw)
	}

	if len(rows) == 0 {
		return nil, errs.Validationf("import: no data rows")
	}
	return rows, nil
}

func checkHeader(header []string) error {
	if len(header) != len(importColumns) {
		return errs.Validationf("import: header has %d columns, want %d (%s)",
			len(header), len(importColumns), strings.Join(importColumns, ","))
	}
	for i, want := range importColumns {
		if normalizeField(header[i]) != want {
			return errs.Validationf("import: header column %d is %q, want %q", i+1, header[i], want)
		}
	}
	return nil
}

// normalizeField strips a leading BOM so a UTF-8-with-BOM export still
// matches the first header column.
func normalizeField(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ToLower(strings.TrimSpace(s))
}

func parseRow(line int, record []string, now time.Time) (*row, error) {
	if len(record) != len(importColumns) {
		return nil, errs.Validationf("import: row %d: expected %d fields, got %d",
			line, len(importColumns), len(record))
	}

	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	rw := &row{line: line, product: record[0], supplier: record[1]}
	if rw.product == "" {
		return nil, errs.Validationf("import: row %d: product is required", line)
	}
	if rw.supplier == "" {
		return nil, errs.Validationf("import: row %d: supplier is required", line)
	}

	var err error
	if rw.rec.Quantity, err = decimal.NewFromString(record[2]); err != nil {
		return nil, errs.Validationf("import: row %d: quantity %q is not a number", line, record[2])
	}
	if !rw.rec.Quantity.IsPositive() {
		return nil, errs.Validationf("import: row %d: quantity must be positive, got %s", line, rw.rec.Quantity)
	}

	if rw.rec.UnitPrice, err = decimal.NewFromString(record[3]); err != nil {
		return nil, errs.Validationf("import: row %d: unit_price %q is not a number", line, record[3])
	}
	if !rw.rec.UnitPrice.IsPositive() {
		return nil, errs.Validationf("import: row %d: unit_price must be positive, got %s", line, rw.rec.UnitPrice)
	}

	if record[4] != "" {
		if rw.rec.Discount, err = decimal.NewFromString(record[4]); err != nil {
			return nil, errs.Validationf("import: row %d: discount %q is not a number", line, record[4])
		}
	}
	if rw.rec.Discount.IsNegative() || rw.rec.Discount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, errs.Validationf("import: row %d: discount must be in [0,1), got %s", line, rw.rec.Discount)
	}

	if rw.rec.Date, err = parseDate(record[5]); err != nil {
		return nil, errs.Validationf("import: row %d: date %q is not a date (want %s)",
			line, record[5], model.DateLayout)
	}
	if rw.rec.Date.After(now) {
		return nil, errs.Validationf("import: row %d: date %s is in the future",
			line, rw.rec.Date.Format(model.DateLayout))
	}

	return rw, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized date %q", s)
}

// resolveCatalog maps product and supplier names to ids, creating missing
// catalog entries unless strict. Each name is looked up once however many
// rows share it.
func resolveCatalog(ctx context.Context, cat Catalog, rows []row, strict bool, result *Result) error {
	products := map[string]string{}
	suppliers := map[string]string{}

	for i := range rows {
		rw := &rows[i]

		id, ok := products[rw.product]
		if !ok {
			p, err := cat.GetProductByName(ctx, rw.product)
			if err != nil {
				return eris.Wrapf(err, "import: look up product %q", rw.product)
			}
			if p == nil {
				if strict {
					return errs.Validationf("import: row %d: unknown product %q", rw.line, rw.product)
				}
				if p, err = cat.CreateProduct(ctx, rw.product); err != nil {
					return eris.Wrapf(err, "import: create product %q", rw.product)
				}
				result.ProductsCreated++
			}
			id = p.ID
			products[rw.product] = id
		}
		rw.rec.ProductID = id
		rw.rec.ProductName = rw.product

		sid, ok := suppliers[rw.supplier]
		if !ok {
			sup, err := cat.GetSupplierByName(ctx, rw.supplier)
			if err != nil {
				return eris.Wrapf(err, "import: look up supplier %q", rw.supplier)
			}
			if sup == nil {
				if strict {
					return errs.Validationf("import: row %d: unknown supplier %q", rw.line, rw.supplier)
				}
				if sup, err = cat.CreateSupplier(ctx, rw.supplier); err != nil {
					return eris.Wrapf(err, "import: create supplier %q", rw.supplier)
				}
				result.SuppliersCreated++
			}
			sid = sup.ID
			suppliers[rw.supplier] = sid
		}
		rw.rec.SupplierID = sid
		rw.rec.SupplierName = rw.supplier
	}

	return nil
}
