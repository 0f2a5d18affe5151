package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
	"github.com/barstock/stock-cli/internal/store"
)

// fakeSource serves canned purchase rows, applying the same filter semantics
// as the sqlite store: inclusive period bounds, optional product match.
type fakeSource struct {
	products  map[string]*model.Product
	purchases []model.PurchaseRecord
}

func (f *fakeSource) ListPurchases(_ context.Context, filter store.PurchaseFilter) ([]model.PurchaseRecord, error) {
	var out []model.PurchaseRecord
	for _, rec := range f.purchases {
		if !filter.From.IsZero() && rec.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && rec.Date.After(filter.To) {
			continue
		}
		if filter.ProductID != "" && rec.ProductID != filter.ProductID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeSource) GetProduct(_ context.Context, id string) (*model.Product, error) {
	return f.products[id], nil
}

func (f *fakeSource) ListProducts(_ context.Context) ([]model.Product, error) {
	var out []model.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(product, supplier, qty, price, disc string, day time.Time) model.PurchaseRecord {
	return model.PurchaseRecord{
		ID:           product + "-" + day.Format("20060102"),
		ProductID:    product,
		ProductName:  "name of " + product,
		SupplierID:   supplier,
		SupplierName: "name of " + supplier,
		Quantity:     decimal.RequireFromString(qty),
		UnitPrice:    decimal.RequireFromString(price),
		Discount:     decimal.RequireFromString(disc),
		Date:         day,
	}
}

func year2026() model.Period {
	return model.Period{From: date(2026, 1, 1), To: date(2026, 12, 31)}
}

// --- AnalyzeVolume ---

func TestAnalyzeVolume_WeightedAverage(t *testing.T) {
	t.Parallel()

	// 10 units at 5.00 from A, 5 units at 4.00 from B.
	src := &fakeSource{
		products: map[string]*model.Product{"p1": {ID: "p1", Name: "House Red"}},
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "10", "5.00", "0", date(2026, 3, 1)),
			rec("p1", "supB", "5", "4.00", "0", date(2026, 3, 15)),
		},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{Period: year2026()})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, 2, r.PurchaseCount)
	assert.True(t, r.TotalQuantity.Equal(decimal.NewFromInt(15)))
	assert.True(t, r.TotalSpend.Equal(decimal.NewFromInt(70)), "10*5 + 5*4")

	require.True(t, r.AveragePrice.Valid)
	assert.Equal(t, "4.67", r.AveragePrice.Decimal.Round(2).String(),
		"average is quantity-weighted (70/15), not the midpoint 4.50")

	require.True(t, r.MinPrice.Valid)
	require.True(t, r.MaxPrice.Valid)
	assert.Equal(t, "4", r.MinPrice.Decimal.String())
	assert.Equal(t, "5", r.MaxPrice.Decimal.String())
	assert.Equal(t, "name of supB", r.MinPriceSupplier)
	assert.Equal(t, "name of supA", r.MaxPriceSupplier)

	assert.True(t, r.SavingsPotential.Equal(decimal.NewFromInt(15)), "(5-4)*15")
	require.NotNil(t, r.LastPurchase)
	assert.Equal(t, date(2026, 3, 15), *r.LastPurchase)
}

func TestAnalyzeVolume_DiscountNetsPrices(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		purchases: []model.PurchaseRecord{
			// net unit price 8.00 after 20% discount
			rec("p1", "supA", "5", "10.00", "0.2", date(2026, 2, 1)),
		},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{Period: year2026()})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	assert.True(t, reports[0].TotalSpend.Equal(decimal.NewFromInt(40)), "5 * 8.00")
	assert.Equal(t, "8", reports[0].MinPrice.Decimal.String())
	assert.Equal(t, "8", reports[0].MaxPrice.Decimal.String())
}

func TestAnalyzeVolume_OrderedBySpendDesc(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		purchases: []model.PurchaseRecord{
			rec("cheap", "supA", "1", "5.00", "0", date(2026, 1, 10)),
			rec("dear", "supA", "10", "50.00", "0", date(2026, 1, 11)),
			rec("mid", "supA", "2", "20.00", "0", date(2026, 1, 12)),
		},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{Period: year2026()})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, "dear", reports[0].ProductID)
	assert.Equal(t, "mid", reports[1].ProductID)
	assert.Equal(t, "cheap", reports[2].ProductID)
}

func TestAnalyzeVolume_SpendTieBreaksOnProductID(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		purchases: []model.PurchaseRecord{
			rec("pb", "supA", "1", "10.00", "0", date(2026, 1, 10)),
			rec("pa", "supA", "2", "5.00", "0", date(2026, 1, 11)),
		},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{Period: year2026()})
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "pa", reports[0].ProductID)
	assert.Equal(t, "pb", reports[1].ProductID)
}

func TestAnalyzeVolume_PeriodExcludesOutsideRows(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "1", "10.00", "0", date(2025, 12, 31)),
			rec("p1", "supA", "3", "10.00", "0", date(2026, 6, 1)),
			rec("p1", "supA", "1", "10.00", "0", date(2027, 1, 1)),
		},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{Period: year2026()})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].TotalQuantity.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, 1, reports[0].PurchaseCount)
}

func TestAnalyzeVolume_EmptyFilteredProduct_UndefinedBounds(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{"p9": {ID: "p9", Name: "Dust Gatherer"}},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{
		Period:    year2026(),
		ProductID: "p9",
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Zero(t, r.PurchaseCount)
	assert.True(t, r.TotalQuantity.IsZero())
	assert.True(t, r.TotalSpend.IsZero())
	assert.False(t, r.AveragePrice.Valid, "no data means undefined, not zero")
	assert.False(t, r.MinPrice.Valid)
	assert.False(t, r.MaxPrice.Valid)
	assert.Nil(t, r.LastPurchase)
}

func TestAnalyzeVolume_NoFilterNoRows(t *testing.T) {
	t.Parallel()

	reports, err := AnalyzeVolume(context.Background(), &fakeSource{}, VolumeRequest{Period: year2026()})
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestAnalyzeVolume_IncludeUnpurchased(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{
			"p1": {ID: "p1", Name: "Moving Stock"},
			"p2": {ID: "p2", Name: "Shelf Warmer"},
		},
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "2", "6.00", "0", date(2026, 5, 1)),
		},
	}

	reports, err := AnalyzeVolume(context.Background(), src, VolumeRequest{
		Period:             year2026(),
		IncludeUnpurchased: true,
	})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	// Zero-spend rows sort to the bottom.
	assert.Equal(t, "p1", reports[0].ProductID)
	assert.Equal(t, "p2", reports[1].ProductID)
	assert.Nil(t, reports[1].LastPurchase)
	assert.False(t, reports[1].MinPrice.Valid)
}

func TestAnalyzeVolume_InvalidPeriod(t *testing.T) {
	t.Parallel()

	_, err := AnalyzeVolume(context.Background(), &fakeSource{}, VolumeRequest{
		Period: model.Period{From: date(2026, 6, 1), To: date(2026, 1, 1)},
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestAnalyzeVolume_UnknownProduct(t *testing.T) {
	t.Parallel()

	_, err := AnalyzeVolume(context.Background(), &fakeSource{}, VolumeRequest{
		Period:    year2026(),
		ProductID: "ghost",
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestAnalyzeVolume_Deterministic(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "7", "3.10", "0.05", date(2026, 4, 1)),
			rec("p2", "supB", "2", "9.99", "0", date(2026, 4, 2)),
			rec("p1", "supB", "4", "2.95", "0", date(2026, 4, 3)),
		},
	}
	req := VolumeRequest{Period: year2026()}

	first, err := AnalyzeVolume(context.Background(), src, req)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := AnalyzeVolume(context.Background(), src, req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// --- CompareSuppliers ---

func TestCompareSuppliers_RanksByWeightedAverage(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{"p1": {ID: "p1", Name: "House Red"}},
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "10", "5.00", "0", date(2026, 3, 1)),
			rec("p1", "supB", "5", "4.00", "0", date(2026, 3, 15)),
		},
	}

	report, err := CompareSuppliers(context.Background(), src, CompareRequest{
		ProductID: "p1",
		Period:    year2026(),
	})
	require.NoError(t, err)
	require.Len(t, report.Suppliers, 2)

	best := report.Suppliers[0]
	assert.Equal(t, "supB", best.SupplierID, "cheaper average ranks first")
	assert.True(t, best.Best)
	assert.Equal(t, "4", best.AveragePrice.String())
	assert.Equal(t, 1, best.SampleCount)
	assert.True(t, best.TotalQuantity.Equal(decimal.NewFromInt(5)))

	second := report.Suppliers[1]
	assert.Equal(t, "supA", second.SupplierID)
	assert.False(t, second.Best)

	// (5.00 - 4.00) * quantity at the best supplier (5)
	assert.True(t, report.SavingsPotential.Equal(decimal.NewFromInt(5)),
		"savings potential, got %s", report.SavingsPotential)
}

func TestCompareSuppliers_QuantityConservation(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{"p1": {ID: "p1", Name: "Pale Ale"}},
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "3", "2.00", "0", date(2026, 1, 1)),
			rec("p1", "supB", "4", "2.10", "0", date(2026, 1, 2)),
			rec("p1", "supC", "5", "1.90", "0.1", date(2026, 1, 3)),
		},
	}

	report, err := CompareSuppliers(context.Background(), src, CompareRequest{
		ProductID: "p1", Period: year2026(),
	})
	require.NoError(t, err)

	volume, err := AnalyzeVolume(context.Background(), src, VolumeRequest{
		Period: year2026(), ProductID: "p1",
	})
	require.NoError(t, err)
	require.Len(t, volume, 1)

	sum := decimal.Zero
	for _, s := range report.Suppliers {
		sum = sum.Add(s.TotalQuantity)
	}
	assert.True(t, sum.Equal(volume[0].TotalQuantity),
		"per-supplier quantities must sum to the volume total")
}

func TestCompareSuppliers_TieBreaks(t *testing.T) {
	t.Parallel()

	t.Run("higher sample count wins", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{
			products: map[string]*model.Product{"p1": {ID: "p1", Name: "Gin"}},
			purchases: []model.PurchaseRecord{
				rec("p1", "supA", "1", "3.00", "0", date(2026, 1, 1)),
				rec("p1", "supB", "1", "3.00", "0", date(2026, 2, 1)),
				rec("p1", "supB", "1", "3.00", "0", date(2026, 3, 1)),
			},
		}

		report, err := CompareSuppliers(context.Background(), src, CompareRequest{
			ProductID: "p1", Period: year2026(),
		})
		require.NoError(t, err)
		require.Len(t, report.Suppliers, 2)
		assert.Equal(t, "supB", report.Suppliers[0].SupplierID)
	})

	t.Run("equal counts fall back to supplier id", func(t *testing.T) {
		t.Parallel()
		src := &fakeSource{
			products: map[string]*model.Product{"p1": {ID: "p1", Name: "Gin"}},
			purchases: []model.PurchaseRecord{
				rec("p1", "supB", "1", "3.00", "0", date(2026, 1, 1)),
				rec("p1", "supA", "1", "3.00", "0", date(2026, 2, 1)),
			},
		}

		report, err := CompareSuppliers(context.Background(), src, CompareRequest{
			ProductID: "p1", Period: year2026(),
		})
		require.NoError(t, err)
		require.Len(t, report.Suppliers, 2)
		assert.Equal(t, "supA", report.Suppliers[0].SupplierID)
	})
}

func TestCompareSuppliers_AverageWithinBounds(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{"p1": {ID: "p1", Name: "Cider"}},
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "2", "4.40", "0", date(2026, 1, 1)),
			rec("p1", "supA", "6", "4.90", "0.05", date(2026, 2, 1)),
			rec("p1", "supA", "1", "5.10", "0", date(2026, 3, 1)),
		},
	}

	report, err := CompareSuppliers(context.Background(), src, CompareRequest{
		ProductID: "p1", Period: year2026(),
	})
	require.NoError(t, err)
	require.Len(t, report.Suppliers, 1)

	s := report.Suppliers[0]
	assert.True(t, s.AveragePrice.GreaterThanOrEqual(s.MinPrice))
	assert.True(t, s.AveragePrice.LessThanOrEqual(s.MaxPrice))
	assert.True(t, s.PriceRange.Equal(s.MaxPrice.Sub(s.MinPrice)))
}

func TestCompareSuppliers_NoPurchases(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{"p1": {ID: "p1", Name: "Mead"}},
	}

	report, err := CompareSuppliers(context.Background(), src, CompareRequest{
		ProductID: "p1", Period: year2026(),
	})
	require.NoError(t, err)
	assert.Empty(t, report.Suppliers)
	assert.True(t, report.SavingsPotential.IsZero())
}

func TestCompareSuppliers_SingleSupplier_NoSavings(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		products: map[string]*model.Product{"p1": {ID: "p1", Name: "Porter"}},
		purchases: []model.PurchaseRecord{
			rec("p1", "supA", "2", "7.00", "0", date(2026, 1, 1)),
		},
	}

	report, err := CompareSuppliers(context.Background(), src, CompareRequest{
		ProductID: "p1", Period: year2026(),
	})
	require.NoError(t, err)
	require.Len(t, report.Suppliers, 1)
	assert.True(t, report.Suppliers[0].Best)
	assert.True(t, report.SavingsPotential.IsZero())
}

func TestCompareSuppliers_MissingProduct(t *testing.T) {
	t.Parallel()

	_, err := CompareSuppliers(context.Background(), &fakeSource{}, CompareRequest{
		ProductID: "ghost", Period: year2026(),
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	_, err = CompareSuppliers(context.Background(), &fakeSource{}, CompareRequest{
		Period: year2026(),
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}
