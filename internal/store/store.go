package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barstock/stock-cli/internal/model"
)

// PurchaseFilter selects purchase rows. Zero-value fields are ignored;
// Limit <= 0 means no limit.
type PurchaseFilter struct {
	From       time.Time `json:"from,omitempty"`
	To         time.Time `json:"to,omitempty"`
	ProductID  string    `json:"product_id,omitempty"`
	SupplierID string    `json:"supplier_id,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// NameCount pairs a catalog entry with a usage count.
type NameCount struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Overview summarizes the store for the status command.
type Overview struct {
	Products        int             `json:"products"`
	Suppliers       int             `json:"suppliers"`
	Purchases       int             `json:"purchases"`
	TotalSpend      decimal.Decimal `json:"total_spend"`
	RecentPurchases int             `json:"recent_purchases"`
	TopProducts     []NameCount     `json:"top_products"`
	TopSuppliers    []NameCount     `json:"top_suppliers"`
}

// Store defines the persistence interface for the purchase tracker.
type Store interface {
	// Catalog
	CreateProduct(ctx context.Context, name string) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	GetProductByName(ctx context.Context, name string) (*model.Product, error)
	EnsureProduct(ctx context.Context, name string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateSupplier(ctx context.Context, name string) (*model.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*model.Supplier, error)
	GetSupplierByName(ctx context.Context, name string) (*model.Supplier, error)
	EnsureSupplier(ctx context.Context, name string) (*model.Supplier, error)
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)

	// Purchases
	CreatePurchase(ctx context.Context, rec model.PurchaseRecord) (*model.PurchaseRecord, error)
	CreatePurchases(ctx context.Context, recs []model.PurchaseRecord) (int, error)
	ListPurchases(ctx context.Context, filter PurchaseFilter) ([]model.PurchaseRecord, error)
	ListRecentPurchases(ctx context.Context, limit int) ([]model.PurchaseRecord, error)

	// Overview
	Overview(ctx context.Context, since time.Time) (*Overview, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
