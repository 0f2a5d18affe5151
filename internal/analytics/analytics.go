// Package analytics derives volume and supplier-comparison reports from
// purchase history. The engines are pure: they hold no store handle, take a
// read-only Source per call, and the same inputs always produce the same
// report, so callers may invoke them repeatedly or concurrently.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/barstock/stock-cli/internal/errs"
	"github.com/barstock/stock-cli/internal/model"
	"github.com/barstock/stock-cli/internal/store"
)

// Source is the slice of the store the engines read from.
type Source interface {
	ListPurchases(ctx context.Context, filter store.PurchaseFilter) ([]model.PurchaseRecord, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
}

// VolumeRequest selects the period and optional product for volume analysis.
// IncludeUnpurchased adds a zero-total report for every catalog product with
// no purchases in the period; the alert rules need those rows to flag
// products that were never bought at all.
type VolumeRequest struct {
	Period             model.Period
	ProductID          string
	IncludeUnpurchased bool
}

// CompareRequest selects the product and period for supplier comparison.
type CompareRequest struct {
	ProductID string
	Period    model.Period
}

// AnalyzeVolume aggregates purchases per product over the requested period.
// Reports are ordered by total spend descending, product id ascending on
// ties. When ProductID is set and the product recorded no purchases in the
// period, a single report with zero totals and undefined price bounds is
// returned; without a product filter, unpurchased products yield no rows.
func AnalyzeVolume(ctx context.Context, src Source, req VolumeRequest) ([]model.VolumeReport, error) {
	product, err := validateRequest(ctx, src, req.Period, req.ProductID, false)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: volume")
	}

	recs, err := src.ListPurchases(ctx, store.PurchaseFilter{
		From:      req.Period.From,
		To:        req.Period.To,
		ProductID: req.ProductID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "analytics: volume")
	}

	if len(recs) == 0 && product != nil {
		return []model.VolumeReport{emptyVolumeReport(product, req.Period)}, nil
	}

	groups := make(map[string][]model.PurchaseRecord)
	for _, rec := range recs {
		groups[rec.ProductID] = append(groups[rec.ProductID], rec)
	}

	reports := make([]model.VolumeReport, 0, len(groups))
	for _, g := range groups {
		reports = append(reports, buildVolumeReport(g, req.Period))
	}

	if req.IncludeUnpurchased && req.ProductID == "" {
		products, err := src.ListProducts(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "analytics: volume")
		}
		for i := range products {
			if _, ok := groups[products[i].ID]; !ok {
				reports = append(reports, emptyVolumeReport(&products[i], req.Period))
			}
		}
	}
	if len(reports) == 0 {
		return nil, nil
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].TotalSpend.Equal(reports[j].TotalSpend) {
			return reports[i].TotalSpend.GreaterThan(reports[j].TotalSpend)
		}
		return reports[i].ProductID < reports[j].ProductID
	})
	return reports, nil
}

// CompareSuppliers ranks the suppliers of one product by quantity-weighted
// average price over the period, cheapest first. Ties break on higher sample
// count, then lexicographic supplier id. SavingsPotential is the spread
// between the worst and best average applied to the best supplier's volume.
func CompareSuppliers(ctx context.Context, src Source, req CompareRequest) (*model.ComparisonReport, error) {
	product, err := validateRequest(ctx, src, req.Period, req.ProductID, true)
	if err != nil {
		return nil, eris.Wrap(err, "analytics: compare")
	}

	recs, err := src.ListPurchases(ctx, store.PurchaseFilter{
		From:      req.Period.From,
		To:        req.Period.To,
		ProductID: req.ProductID,
	})
	if err != nil {
		return nil, eris.Wrap(err, "analytics: compare")
	}

	report := &model.ComparisonReport{
		ProductID:        product.ID,
		ProductName:      product.Name,
		Period:           req.Period,
		SavingsPotential: decimal.Zero,
	}
	if len(recs) == 0 {
		return report, nil
	}

	type acc struct {
		stat  model.SupplierStat
		spend decimal.Decimal
	}
	accs := make(map[string]*acc)
	for _, rec := range recs {
		a, ok := accs[rec.SupplierID]
		if !ok {
			a = &acc{
				stat: model.SupplierStat{
					SupplierID:    rec.SupplierID,
					SupplierName:  rec.SupplierName,
					MinPrice:      rec.NetUnitPrice(),
					MaxPrice:      rec.NetUnitPrice(),
					TotalQuantity: decimal.Zero,
					LastPurchase:  rec.Date,
				},
				spend: decimal.Zero,
			}
			accs[rec.SupplierID] = a
		}

		net := rec.NetUnitPrice()
		if net.LessThan(a.stat.MinPrice) {
			a.stat.MinPrice = net
		}
		if net.GreaterThan(a.stat.MaxPrice) {
			a.stat.MaxPrice = net
		}
		if rec.Date.After(a.stat.LastPurchase) {
			a.stat.LastPurchase = rec.Date
		}
		a.stat.SampleCount++
		a.stat.TotalQuantity = a.stat.TotalQuantity.Add(rec.Quantity)
		a.spend = a.spend.Add(rec.NetCost())
	}

	stats := make([]model.SupplierStat, 0, len(accs))
	for _, a := range accs {
		a.stat.AveragePrice = a.spend.Div(a.stat.TotalQuantity)
		a.stat.PriceRange = a.stat.MaxPrice.Sub(a.stat.MinPrice)
		stats = append(stats, a.stat)
	}
	sort.Slice(stats, func(i, j int) bool {
		if !stats[i].AveragePrice.Equal(stats[j].AveragePrice) {
			return stats[i].AveragePrice.LessThan(stats[j].AveragePrice)
		}
		if stats[i].SampleCount != stats[j].SampleCount {
			return stats[i].SampleCount > stats[j].SampleCount
		}
		return stats[i].SupplierID < stats[j].SupplierID
	})

	stats[0].Best = true
	report.Suppliers = stats
	if len(stats) > 1 {
		best, worst := stats[0], stats[len(stats)-1]
		report.SavingsPotential = worst.AveragePrice.Sub(best.AveragePrice).Mul(best.TotalQuantity)
	}
	return report, nil
}

// validateRequest checks the period and resolves the product filter.
// Violations surface as ValidationError before any rows are read.
func validateRequest(ctx context.Context, src Source, period model.Period, productID string, productRequired bool) (*model.Product, error) {
	if err := period.Validate(); err != nil {
		return nil, errs.NewValidation(err)
	}
	if productID == "" {
		if productRequired {
			return nil, errs.Validationf("product id is required")
		}
		return nil, nil
	}

	product, err := src.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, errs.Validationf("unknown product %s", productID)
	}
	return product, nil
}

func buildVolumeReport(recs []model.PurchaseRecord, period model.Period) model.VolumeReport {
	r := model.VolumeReport{
		ProductID:     recs[0].ProductID,
		ProductName:   recs[0].ProductName,
		Period:        period,
		PurchaseCount: len(recs),
		TotalQuantity: decimal.Zero,
		TotalSpend:    decimal.Zero,
	}

	var minPrice, maxPrice decimal.Decimal
	var last time.Time
	for i, rec := range recs {
		r.TotalQuantity = r.TotalQuantity.Add(rec.Quantity)
		r.TotalSpend = r.TotalSpend.Add(rec.NetCost())

		net := rec.NetUnitPrice()
		if i == 0 || net.LessThan(minPrice) {
			minPrice = net
			r.MinPriceSupplier = rec.SupplierName
		}
		if i == 0 || net.GreaterThan(maxPrice) {
			maxPrice = net
			r.MaxPriceSupplier = rec.SupplierName
		}
		if rec.Date.After(last) {
			last = rec.Date
		}
	}

	// Quantity-weighted: 10 units at 5.00 and 5 units at 4.00 average to
	// 4.67, not the arithmetic midpoint 4.50.
	r.AveragePrice = decimal.NewNullDecimal(r.TotalSpend.Div(r.TotalQuantity))
	r.MinPrice = decimal.NewNullDecimal(minPrice)
	r.MaxPrice = decimal.NewNullDecimal(maxPrice)
	r.LastPurchase = &last
	r.SavingsPotential = maxPrice.Sub(minPrice).Mul(r.TotalQuantity)
	return r
}

func emptyVolumeReport(p *model.Product, period model.Period) model.VolumeReport {
	return model.VolumeReport{
		ProductID:        p.ID,
		ProductName:      p.Name,
		Period:           period,
		TotalQuantity:    decimal.Zero,
		TotalSpend:       decimal.Zero,
		SavingsPotential: decimal.Zero,
	}
}
