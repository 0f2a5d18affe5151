package model

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// DateLayout is the civil date format used across storage, import, and export.
const DateLayout = "2006-01-02"

// Product is a catalog entry purchases refer to.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Supplier is a vendor purchases are sourced from.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PurchaseRecord is a single immutable purchase event. ProductName and
// SupplierName are populated on reads by joining the catalog tables.
type PurchaseRecord struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name,omitempty"`
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Discount     decimal.Decimal `json:"discount"`
	Date         time.Time       `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NetUnitPrice returns the per-unit price after discount.
func (p PurchaseRecord) NetUnitPrice() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(1).Sub(p.Discount))
}

// NetCost returns the total cost of the purchase after discount.
func (p PurchaseRecord) NetCost() decimal.Decimal {
	return p.Quantity.Mul(p.NetUnitPrice())
}

// Validate checks the record's field constraints. now bounds the purchase
// date: records dated in the future are rejected.
func (p PurchaseRecord) Validate(now time.Time) error {
	if p.ProductID == "" {
		return eris.New("purchase: product id is required")
	}
	if p.SupplierID == "" {
		return eris.New("purchase: supplier id is required")
	}
	if !p.Quantity.IsPositive() {
		return eris.Errorf("purchase: quantity must be positive, got %s", p.Quantity)
	}
	if !p.UnitPrice.IsPositive() {
		return eris.Errorf("purchase: unit price must be positive, got %s", p.UnitPrice)
	}
	if p.Discount.IsNegative() || p.Discount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return eris.Errorf("purchase: discount must be in [0,1), got %s", p.Discount)
	}
	if p.Date.IsZero() {
		return eris.New("purchase: date is required")
	}
	if p.Date.After(now) {
		return eris.Errorf("purchase: date %s is in the future", p.Date.Format(DateLayout))
	}
	return nil
}

// Period is a closed civil-date interval [From, To].
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate checks that both bounds are set and ordered.
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return eris.New("period: both bounds are required")
	}
	if p.From.After(p.To) {
		return eris.Errorf("period: from %s is after to %s",
			p.From.Format(DateLayout), p.To.Format(DateLayout))
	}
	return nil
}

// Contains reports whether the date falls inside the period (inclusive).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && !t.After(p.To)
}
