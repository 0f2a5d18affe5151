package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertKind identifies the rule that produced an alert.
type AlertKind string

const (
	AlertExcessStock    AlertKind = "excess_stock"
	AlertStaleProduct   AlertKind = "stale_product"
	AlertPriceVariation AlertKind = "price_variation"
)

// Priority classifies how urgent an alert is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the sort weight of a priority, lower is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Alert is a single threshold breach. Alerts are report artifacts: they are
// regenerated from current data on every evaluation and never stored.
type Alert struct {
	Kind        AlertKind       `json:"kind"`
	Priority    Priority        `json:"priority"`
	SubjectID   string          `json:"subject_id"`
	ProductName string          `json:"product_name"`
	Message     string          `json:"message"`
	Metric      decimal.Decimal `json:"metric"`
	Timestamp   time.Time       `json:"timestamp"`
}
