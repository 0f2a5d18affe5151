package alerting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/stock-cli/internal/config"
	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
)

var asOf = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

func testThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		ExcessStockPct:      0.20,
		ExcessStockBaseline: 10,
		DaysWithoutPurchase: 30,
		DaysStaleAlert:      60,
		PriceVariationPct:   0.15,
	}
}

func newTestEngine(t *testing.T, th config.ThresholdConfig) *Engine {
	t.Helper()

	eng, err := NewEngine(th)
	require.NoError(t, err)
	return eng
}

func daysAgo(n int) *time.Time {
	t := asOf.AddDate(0, 0, -n)
	return &t
}

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// quietReport triggers no rule under testThresholds: volume below the excess
// limit, purchased yesterday, flat prices.
func quietReport(id string) model.VolumeReport {
	return model.VolumeReport{
		ProductID:     id,
		ProductName:   "name of " + id,
		PurchaseCount: 2,
		TotalQuantity: decimal.NewFromInt(5),
		TotalSpend:    decimal.NewFromInt(25),
		AveragePrice:  price("5"),
		MinPrice:      price("5"),
		MaxPrice:      price("5"),
		LastPurchase:  daysAgo(1),
	}
}

func kinds(alerts []model.Alert) []model.AlertKind {
	out := make([]model.AlertKind, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Kind)
	}
	return out
}

// --- Construction ---

func TestNewEngine_RejectsInvalidThresholds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*config.ThresholdConfig)
	}{
		{"negative excess pct", func(th *config.ThresholdConfig) { th.ExcessStockPct = -0.1 }},
		{"negative baseline", func(th *config.ThresholdConfig) { th.ExcessStockBaseline = -1 }},
		{"negative variation pct", func(th *config.ThresholdConfig) { th.PriceVariationPct = -0.5 }},
		{"stale below warning window", func(th *config.ThresholdConfig) { th.DaysStaleAlert = 10 }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			th := testThresholds()
			tc.mutate(&th)

			eng, err := NewEngine(th)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err))
			assert.Nil(t, eng)
		})
	}
}

// --- Excess stock ---

func TestEngine_Evaluate_ExcessStock(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	r := quietReport("p1")
	r.TotalQuantity = decimal.NewFromInt(13)

	alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, model.AlertExcessStock, a.Kind)
	assert.Equal(t, model.PriorityHigh, a.Priority)
	assert.Equal(t, "p1", a.SubjectID)
	assert.True(t, a.Metric.Equal(decimal.NewFromInt(13)))
	assert.Contains(t, a.Message, "exceeds baseline 10")
	assert.Contains(t, a.Message, "30%")
	assert.Equal(t, asOf, a.Timestamp)
}

func TestEngine_Evaluate_ExcessStock_AtLimitIsQuiet(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	// Baseline 10 with 20% margin puts the limit at exactly 12.
	r := quietReport("p1")
	r.TotalQuantity = decimal.NewFromInt(12)

	assert.Empty(t, eng.Evaluate([]model.VolumeReport{r}, asOf))
}

func TestEngine_Evaluate_ExcessStock_ZeroBaselineDisablesRule(t *testing.T) {
	th := testThresholds()
	th.ExcessStockBaseline = 0
	eng := newTestEngine(t, th)

	r := quietReport("p1")
	r.TotalQuantity = decimal.NewFromInt(10000)

	assert.Empty(t, eng.Evaluate([]model.VolumeReport{r}, asOf))
}

// --- Stale product ---

func TestEngine_Evaluate_StaleProduct(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	cases := []struct {
		name     string
		last     *time.Time
		priority model.Priority
		fires    bool
	}{
		{"recent purchase", daysAgo(10), "", false},
		{"at warning boundary", daysAgo(30), "", false},
		{"past warning window", daysAgo(31), model.PriorityMedium, true},
		{"at stale boundary", daysAgo(60), model.PriorityMedium, true},
		{"past stale window", daysAgo(61), model.PriorityHigh, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := quietReport("p1")
			r.LastPurchase = tc.last

			alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
			if !tc.fires {
				assert.Empty(t, alerts)
				return
			}

			require.Len(t, alerts, 1)
			assert.Equal(t, model.AlertStaleProduct, alerts[0].Kind)
			assert.Equal(t, tc.priority, alerts[0].Priority)
			assert.Contains(t, alerts[0].Message, "days ago")
		})
	}
}

func TestEngine_Evaluate_StaleProduct_NeverPurchased(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	r := model.VolumeReport{ProductID: "p1", ProductName: "name of p1"}

	alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.AlertStaleProduct, alerts[0].Kind)
	assert.Equal(t, model.PriorityHigh, alerts[0].Priority)
	assert.Contains(t, alerts[0].Message, "no purchases recorded")
	assert.True(t, alerts[0].Metric.IsZero())
}

// --- Price variation ---

func TestEngine_Evaluate_PriceVariation(t *testing.T) {
	th := testThresholds()
	th.PriceVariationPct = 0.10
	eng := newTestEngine(t, th)

	r := quietReport("p1")
	r.MinPrice = price("4")
	r.MaxPrice = price("5")
	r.MinPriceSupplier = "brewer north"
	r.MaxPriceSupplier = "brewer south"

	alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, model.AlertPriceVariation, a.Kind)
	assert.Equal(t, model.PriorityMedium, a.Priority)
	assert.True(t, a.Metric.Equal(decimal.RequireFromString("0.25")))
	assert.Contains(t, a.Message, "25%")
	assert.Contains(t, a.Message, "brewer north")
	assert.Contains(t, a.Message, "brewer south")
}

func TestEngine_Evaluate_PriceVariation_WideSpreadStaysMedium(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	r := quietReport("p1")
	r.MinPrice = price("2")
	r.MaxPrice = price("7")

	alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.PriorityMedium, alerts[0].Priority)
}

func TestEngine_Evaluate_PriceVariation_BelowThresholdIsQuiet(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	r := quietReport("p1")
	r.MinPrice = price("5")
	r.MaxPrice = price("5.5")

	assert.Empty(t, eng.Evaluate([]model.VolumeReport{r}, asOf))
}

func TestEngine_Evaluate_PriceVariation_UndefinedBoundsAreQuiet(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	// An empty report has no price bounds. It still alerts as never
	// purchased, but missing data must not count as a price breach.
	r := model.VolumeReport{ProductID: "p1", ProductName: "name of p1"}

	alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
	assert.NotContains(t, kinds(alerts), model.AlertPriceVariation)
}

// --- Evaluation as a whole ---

func TestEngine_Evaluate_NoBreachesNoAlerts(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	reports := []model.VolumeReport{quietReport("p1"), quietReport("p2")}
	assert.Empty(t, eng.Evaluate(reports, asOf))
}

func TestEngine_Evaluate_AllRulesOnOneProduct(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	r := quietReport("p1")
	r.TotalQuantity = decimal.NewFromInt(20)
	r.LastPurchase = daysAgo(40)
	r.MinPrice = price("4")
	r.MaxPrice = price("5")

	alerts := eng.Evaluate([]model.VolumeReport{r}, asOf)
	require.Len(t, alerts, 3)
	assert.Equal(t, []model.AlertKind{
		model.AlertExcessStock,
		model.AlertStaleProduct,
		model.AlertPriceVariation,
	}, kinds(alerts))
	assert.Equal(t, model.PriorityHigh, alerts[0].Priority)
	assert.Equal(t, model.PriorityMedium, alerts[1].Priority)
	assert.Equal(t, model.PriorityMedium, alerts[2].Priority)
}

func TestEngine_Evaluate_OrdersByPriorityThenInput(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	stale := quietReport("p1")
	stale.LastPurchase = daysAgo(31)

	excess := quietReport("p2")
	excess.TotalQuantity = decimal.NewFromInt(20)

	spread := quietReport("p3")
	spread.MinPrice = price("4")
	spread.MaxPrice = price("5")

	veryStale := quietReport("p4")
	veryStale.LastPurchase = daysAgo(90)

	alerts := eng.Evaluate([]model.VolumeReport{stale, excess, spread, veryStale}, asOf)
	require.Len(t, alerts, 4)

	var ids []string
	for _, a := range alerts {
		ids = append(ids, a.SubjectID)
	}
	// Highs first in input order, then mediums in input order.
	assert.Equal(t, []string{"p2", "p4", "p1", "p3"}, ids)
	assert.Equal(t, model.PriorityHigh, alerts[0].Priority)
	assert.Equal(t, model.PriorityHigh, alerts[1].Priority)
	assert.Equal(t, model.PriorityMedium, alerts[2].Priority)
	assert.Equal(t, model.PriorityMedium, alerts[3].Priority)
}

func TestEngine_Evaluate_Deterministic(t *testing.T) {
	eng := newTestEngine(t, testThresholds())

	r := quietReport("p1")
	r.TotalQuantity = decimal.NewFromInt(20)
	r.LastPurchase = daysAgo(40)

	first := eng.Evaluate([]model.VolumeReport{r}, asOf)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, eng.Evaluate([]model.VolumeReport{r}, asOf))
	}
}
