package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, path: dsn}, nil
}

// Quantities, prices, and discounts are stored as decimal strings to keep
// arithmetic exact; purchased_at is a civil date string so lexicographic
// comparison matches chronological order.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS purchases (
	id           TEXT PRIMARY KEY,
	product_id   TEXT NOT NULL REFERENCES products(id),
	supplier_id  TEXT NOT NULL REFERENCES suppliers(id),
	quantity     TEXT NOT NULL,
	unit_price   TEXT NOT NULL,
	discount     TEXT NOT NULL DEFAULT '0',
	purchased_at TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_purchases_product_id ON purchases(product_id);
CREATE INDEX IF NOT EXISTS idx_purchases_supplier_id ON purchases(supplier_id);
CREATE INDEX IF NOT EXISTS idx_purchases_purchased_at ON purchases(purchased_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the on-disk location of the store file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// --- Catalog ---

func (s *SQLiteStore) CreateProduct(ctx context.Context, name string) (*model.Product, error) {
	if name == "" {
		return nil, eris.New("sqlite: product name is required")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert product %q", name)
	}
	return &model.Product{ID: id, Name: name, CreatedAt: now}, nil
}

func (s *SQLiteStore) CreateSupplier(ctx context.Context, name string) (*model.Supplier, error) {
	if name == "" {
		return nil, eris.New("sqlite: supplier name is required")
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert supplier %q", name)
	}
	return &model.Supplier{ID: id, Name: name, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM products WHERE id = ?`, id)
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get product")
	}
	return &p, nil
}

func (s *SQLiteStore) GetProductByName(ctx context.Context, name string) (*model.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM products WHERE name = ?`, name)
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get product by name")
	}
	return &p, nil
}

func (s *SQLiteStore) EnsureProduct(ctx context.Context, name string) (*model.Product, error) {
	p, err := s.GetProductByName(ctx, name)
	if err != nil || p != nil {
		return p, err
	}
	return s.CreateProduct(ctx, name)
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

func (s *SQLiteStore) GetSupplier(ctx context.Context, id string) (*model.Supplier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM suppliers WHERE id = ?`, id)
	var sup model.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get supplier")
	}
	return &sup, nil
}

func (s *SQLiteStore) GetSupplierByName(ctx context.Context, name string) (*model.Supplier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM suppliers WHERE name = ?`, name)
	var sup model.Supplier
	err := row.Scan(&sup.ID, &sup.Name, &sup.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get supplier by name")
	}
	return &sup, nil
}

func (s *SQLiteStore) EnsureSupplier(ctx context.Context, name string) (*model.Supplier, error) {
	sup, err := s.GetSupplierByName(ctx, name)
	if err != nil || sup != nil {
		return sup, err
	}
	return s.CreateSupplier(ctx, name)
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suppliers")
	}
	defer rows.Close()

	var suppliers []model.Supplier
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, eris.Wrap(rows.Err(), "sqlite: list suppliers iterate")
}

// --- Purchases ---

func (s *SQLiteStore) CreatePurchase(ctx context.Context, rec model.PurchaseRecord) (*model.PurchaseRecord, error) {
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO purchases (id, product_id, supplier_id, quantity, unit_price, discount, purchased_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ProductID, rec.SupplierID,
		rec.Quantity.String(), rec.UnitPrice.String(), rec.Discount.String(),
		rec.Date.Format(model.DateLayout), rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert purchase")
	}
	return &rec, nil
}

// CreatePurchases inserts records in a single transaction; either all rows
// land or none do.
func (s *SQLiteStore) CreatePurchases(ctx context.Context, recs []model.PurchaseRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO purchases (id, product_id, supplier_id, quantity, unit_price, discount, purchased_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for i, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), rec.ProductID, rec.SupplierID,
			rec.Quantity.String(), rec.UnitPrice.String(), rec.Discount.String(),
			rec.Date.Format(model.DateLayout), now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert purchase %d/%d", i+1, len(recs))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit purchases")
	}
	return len(recs), nil
}

const purchaseSelect = `
SELECT p.id, p.product_id, pr.name, p.supplier_id, s.name,
       p.quantity, p.unit_price, p.discount, p.purchased_at, p.created_at
FROM purchases p
LEFT JOIN products pr ON pr.id = p.product_id
LEFT JOIN suppliers s ON s.id = p.supplier_id`

func (s *SQLiteStore) ListPurchases(ctx context.Context, filter PurchaseFilter) ([]model.PurchaseRecord, error) {
	query := purchaseSelect + ` WHERE 1=1`
	var args []any

	if !filter.From.IsZero() {
		query += ` AND p.purchased_at >= ?`
		args = append(args, filter.From.Format(model.DateLayout))
	}
	if !filter.To.IsZero() {
		query += ` AND p.purchased_at <= ?`
		args = append(args, filter.To.Format(model.DateLayout))
	}
	if filter.ProductID != "" {
		query += ` AND p.product_id = ?`
		args = append(args, filter.ProductID)
	}
	if filter.SupplierID != "" {
		query += ` AND p.supplier_id = ?`
		args = append(args, filter.SupplierID)
	}
	query += ` ORDER BY p.purchased_at ASC, p.created_at ASC, p.id ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	return s.queryPurchases(ctx, query, args...)
}

func (s *SQLiteStore) ListRecentPurchases(ctx context.Context, limit int) ([]model.PurchaseRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := purchaseSelect + ` ORDER BY p.purchased_at DESC, p.created_at DESC, p.id DESC LIMIT ?`
	return s.queryPurchases(ctx, query, limit)
}

func (s *SQLiteStore) queryPurchases(ctx context.Context, query string, args ...any) ([]model.PurchaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query purchases")
	}
	defer rows.Close()

	var recs []model.PurchaseRecord
	for rows.Next() {
		rec, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: purchases iterate")
}

// --- Overview ---

func (s *SQLiteStore) Overview(ctx context.Context, since time.Time) (*Overview, error) {
	var ov Overview

	for table, dest := range map[string]*int{
		"products":  &ov.Products,
		"suppliers": &ov.Suppliers,
		"purchases": &ov.Purchases,
	} {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table).Scan(dest); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM purchases WHERE purchased_at >= ?`,
		since.Format(model.DateLayout),
	).Scan(&ov.RecentPurchases); err != nil {
		return nil, eris.Wrap(err, "sqlite: count recent purchases")
	}

	// Spend is summed in Go; SQL SUM over decimal strings would go through
	// floats and lose exactness.
	rows, err := s.db.QueryContext(ctx, `SELECT quantity, unit_price, discount FROM purchases`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: overview spend")
	}
	defer rows.Close()

	ov.TotalSpend = decimal.Zero
	for rows.Next() {
		var qty, price, disc string
		if err := rows.Scan(&qty, &price, &disc); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan spend row")
		}
		rec := model.PurchaseRecord{}
		if rec.Quantity, err = parseStoredDecimal("quantity", qty); err != nil {
			return nil, err
		}
		if rec.UnitPrice, err = parseStoredDecimal("unit_price", price); err != nil {
			return nil, err
		}
		if rec.Discount, err = parseStoredDecimal("discount", disc); err != nil {
			return nil, err
		}
		ov.TotalSpend = ov.TotalSpend.Add(rec.NetCost())
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: overview spend iterate")
	}

	if ov.TopProducts, err = s.topCounts(ctx,
		`SELECT p.product_id, COALESCE(pr.name, p.product_id), COUNT(*) AS c
		 FROM purchases p LEFT JOIN products pr ON pr.id = p.product_id
		 GROUP BY p.product_id ORDER BY c DESC, p.product_id ASC LIMIT 5`); err != nil {
		return nil, err
	}
	if ov.TopSuppliers, err = s.topCounts(ctx,
		`SELECT p.supplier_id, COALESCE(s.name, p.supplier_id), COUNT(*) AS c
		 FROM purchases p LEFT JOIN suppliers s ON s.id = p.supplier_id
		 GROUP BY p.supplier_id ORDER BY c DESC, p.supplier_id ASC LIMIT 5`); err != nil {
		return nil, err
	}

	return &ov, nil
}

func (s *SQLiteStore) topCounts(ctx context.Context, query string) ([]NameCount, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top counts")
	}
	defer rows.Close()

	var out []NameCount
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.ID, &nc.Name, &nc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan top count")
		}
		out = append(out, nc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: top counts iterate")
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanPurchase(row scannable) (*model.PurchaseRecord, error) {
	var rec model.PurchaseRecord
	var productName, supplierName sql.NullString
	var qty, price, disc, date string

	err := row.Scan(&rec.ID, &rec.ProductID, &productName, &rec.SupplierID, &supplierName,
		&qty, &price, &disc, &date, &rec.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan purchase")
	}

	// A NULL join column means the purchase points at a catalog row that no
	// longer exists. That is corruption, not an empty result.
	if !productName.Valid {
		return nil, eris.Wrap(
			errs.DataIntegrityf("purchase %s references missing product %s", rec.ID, rec.ProductID),
			"sqlite: scan purchase")
	}
	if !supplierName.Valid {
		return nil, eris.Wrap(
			errs.DataIntegrityf("purchase %s references missing supplier %s", rec.ID, rec.SupplierID),
			"sqlite: scan purchase")
	}
	rec.ProductName = productName.String
	rec.SupplierName = supplierName.String

	if rec.Quantity, err = parseStoredDecimal("quantity", qty); err != nil {
		return nil, err
	}
	if rec.UnitPrice, err = parseStoredDecimal("unit_price", price); err != nil {
		return nil, err
	}
	if rec.Discount, err = parseStoredDecimal("discount", disc); err != nil {
		return nil, err
	}
	if rec.Date, err = time.Parse(model.DateLayout, date); err != nil {
		return nil, eris.Wrap(
			errs.DataIntegrityf("purchase %s has undecodable date %q", rec.ID, date),
			"sqlite: scan purchase")
	}
	return &rec, nil
}

func parseStoredDecimal(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, eris.Wrap(
			errs.DataIntegrityf("stored %s %q is not a decimal", column, raw),
			"sqlite: parse decimal")
	}
	return d, nil
}
