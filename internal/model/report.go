package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VolumeReport aggregates one product's purchases over a period. It is
// derived on demand and never persisted. Price bounds are NullDecimal:
// a product with no purchases in the period has undefined bounds, not zero.
type VolumeReport struct {
	ProductID        string              `json:"product_id"`
	ProductName      string              `json:"product_name"`
	Period           Period              `json:"period"`
	PurchaseCount    int                 `json:"purchase_count"`
	TotalQuantity    decimal.Decimal     `json:"total_quantity"`
	TotalSpend       decimal.Decimal     `json:"total_spend"`
	AveragePrice     decimal.NullDecimal `json:"average_price"`
	MinPrice         decimal.NullDecimal `json:"min_price"`
	MinPriceSupplier string              `json:"min_price_supplier,omitempty"`
	MaxPrice         decimal.NullDecimal `json:"max_price"`
	MaxPriceSupplier string              `json:"max_price_supplier,omitempty"`
	LastPurchase     *time.Time          `json:"last_purchase,omitempty"`
	SavingsPotential decimal.Decimal     `json:"savings_potential"`
}

// SupplierStat summarizes one supplier's pricing for a product over a period.
type SupplierStat struct {
	SupplierID    string          `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	PriceRange    decimal.Decimal `json:"price_range"`
	SampleCount   int             `json:"sample_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	LastPurchase  time.Time       `json:"last_purchase"`
	Best          bool            `json:"best"`
}

// ComparisonReport ranks the suppliers of one product by average price.
// Suppliers is ordered best first; ties break on higher sample count, then
// lexicographic supplier id.
type ComparisonReport struct {
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Period           Period          `json:"period"`
	Suppliers        []SupplierStat  `json:"suppliers"`
	SavingsPotential decimal.Decimal `json:"savings_potential"`
}
