// Package alerting classifies volume reports against configured thresholds
// into prioritized alerts.
package alerting

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/barstock/stock-cli/internal/config"
	"github.com/barstock/stock-cli/internal/model"
)

// Engine evaluates volume reports against thresholds. It is stateless after
// construction; the same reports and asOf always produce the same alerts.
type Engine struct {
	th config.ThresholdConfig
}

// NewEngine validates the thresholds and returns an evaluator. Malformed
// thresholds are the engine's only failure mode, so they are rejected here
// and Evaluate itself cannot fail.
func NewEngine(th config.ThresholdConfig) (*Engine, error) {
	if err := th.Validate(); err != nil {
		return nil, eris.Wrap(err, "alerting: thresholds")
	}
	return &Engine{th: th}, nil
}

// Evaluate applies the three alert rules to each report. At most one alert
// per rule per product. The result is ordered high, medium, low; within a
// tier alerts keep the order of the input reports. No breaches yield an
// empty result, which is a valid outcome, not an error.
func (e *Engine) Evaluate(reports []model.VolumeReport, asOf time.Time) []model.Alert {
	var alerts []model.Alert
	for _, r := range reports {
		if a := e.checkExcessStock(r, asOf); a != nil {
			alerts = append(alerts, *a)
		}
		if a := e.checkStaleProduct(r, asOf); a != nil {
			alerts = append(alerts, *a)
		}
		if a := e.checkPriceVariation(r, asOf); a != nil {
			alerts = append(alerts, *a)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Priority.Rank() < alerts[j].Priority.Rank()
	})
	return alerts
}

// checkExcessStock flags products whose period volume exceeds the baseline
// by more than the configured margin.
func (e *Engine) checkExcessStock(r model.VolumeReport, asOf time.Time) *model.Alert {
	baseline := e.th.Baseline()
	if baseline.IsZero() {
		return nil
	}
	limit := baseline.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(e.th.ExcessStockPct)))
	if !r.TotalQuantity.GreaterThan(limit) {
		return nil
	}

	overPct := r.TotalQuantity.Div(baseline).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
	return &model.Alert{
		Kind:        model.AlertExcessStock,
		Priority:    model.PriorityHigh,
		SubjectID:   r.ProductID,
		ProductName: r.ProductName,
		Message: fmt.Sprintf("%s volume %s exceeds baseline %s by %s%%",
			r.ProductName, r.TotalQuantity, baseline, overPct.Round(1)),
		Metric:    r.TotalQuantity,
		Timestamp: asOf,
	}
}

// checkStaleProduct flags products not purchased recently. A product with no
// purchase at all is maximally stale.
func (e *Engine) checkStaleProduct(r model.VolumeReport, asOf time.Time) *model.Alert {
	if r.LastPurchase == nil {
		return &model.Alert{
			Kind:        model.AlertStaleProduct,
			Priority:    model.PriorityHigh,
			SubjectID:   r.ProductID,
			ProductName: r.ProductName,
			Message:     fmt.Sprintf("%s has no purchases recorded", r.ProductName),
			Metric:      decimal.Zero,
			Timestamp:   asOf,
		}
	}

	days := int(asOf.Sub(*r.LastPurchase).Hours() / 24)
	if days <= e.th.DaysWithoutPurchase {
		return nil
	}

	priority := model.PriorityMedium
	if days > e.th.DaysStaleAlert {
		priority = model.PriorityHigh
	}
	return &model.Alert{
		Kind:        model.AlertStaleProduct,
		Priority:    priority,
		SubjectID:   r.ProductID,
		ProductName: r.ProductName,
		Message: fmt.Sprintf("%s last purchased %d days ago (warning after %d)",
			r.ProductName, days, e.th.DaysWithoutPurchase),
		Metric:    decimal.NewFromInt(int64(days)),
		Timestamp: asOf,
	}
}

// checkPriceVariation flags products whose net unit prices spread wider than
// the configured fraction of the minimum. Undefined bounds (no purchases)
// never alert: no data is not a breach.
func (e *Engine) checkPriceVariation(r model.VolumeReport, asOf time.Time) *model.Alert {
	if !r.MinPrice.Valid || !r.MaxPrice.Valid || !r.MinPrice.Decimal.IsPositive() {
		return nil
	}

	spread := r.MaxPrice.Decimal.Sub(r.MinPrice.Decimal).Div(r.MinPrice.Decimal)
	if !spread.GreaterThan(decimal.NewFromFloat(e.th.PriceVariationPct)) {
		return nil
	}

	return &model.Alert{
		Kind:        model.AlertPriceVariation,
		Priority:    model.PriorityMedium,
		SubjectID:   r.ProductID,
		ProductName: r.ProductName,
		Message: fmt.Sprintf("%s price spread %s%%: min %s (%s), max %s (%s)",
			r.ProductName, spread.Mul(decimal.NewFromInt(100)).Round(1),
			r.MinPrice.Decimal, r.MinPriceSupplier,
			r.MaxPrice.Decimal, r.MaxPriceSupplier),
		Metric:    spread,
		Timestamp: asOf,
	}
}
