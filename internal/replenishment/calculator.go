package replenishment

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

// Calculator turns segmentation targets, sales and stock into suggested
// transfers from the central warehouse to stores.
type Calculator struct {
	now func() time.Time
}

// NewCalculator creates a new replenishment calculator
func NewCalculator() *Calculator {
	return &Calculator{now: time.Now}
}

type storeStock struct {
	available decimal.Decimal
	ordered   decimal.Decimal
	min       decimal.Decimal
	known     bool
}

// Calculate runs one replenishment calculation. Lines come out sorted by SKU
// and then by store priority rank.
func (c *Calculator) Calculate(in Input) (domain.ReplenishmentResult, error) {
	if err := in.Validate(); err != nil {
		return domain.ReplenishmentResult{}, err
	}

	selected := make(map[string]bool, len(in.DeliveryOptions))
	for _, d := range in.DeliveryOptions {
		selected[d] = true
	}

	// 1. Targets per SKU and store, summed across the selected delivery rows
	targets := make(map[string]map[string]decimal.Decimal)
	for _, seg := range in.Segments {
		if !selected[seg.DeliveryOption] {
			continue
		}
		byStore, ok := targets[seg.SKU]
		if !ok {
			byStore = make(map[string]decimal.Decimal)
			targets[seg.SKU] = byStore
		}
		for store, v := range seg.Targets {
			byStore[store] = byStore[store].Add(decimal.NewFromFloat(v))
		}
	}
	for sku, byStore := range targets {
		for _, store := range in.StorePriority {
			if v, ok := in.EditedSegments.lookup(sku, store); ok {
				byStore[store] = decimal.NewFromFloat(v)
			}
		}
	}

	// 2. Sales with overrides
	sales := make(map[string]map[string]decimal.Decimal)
	for _, s := range in.Sales {
		byStore, ok := sales[s.SKU]
		if !ok {
			byStore = make(map[string]decimal.Decimal)
			sales[s.SKU] = byStore
		}
		byStore[s.Store] = byStore[s.Store].Add(decimal.NewFromFloat(s.Qty))
	}

	// 3. Current stock per SKU and store, supply at the central warehouse
	stock := make(map[string]map[string]storeStock)
	for _, st := range in.StoreStock {
		byStore, ok := stock[st.SKU]
		if !ok {
			byStore = make(map[string]storeStock)
			stock[st.SKU] = byStore
		}
		byStore[st.Store] = storeStock{
			available: decimal.NewFromFloat(st.ERPAvailable),
			ordered:   decimal.NewFromFloat(st.OrderedQty),
			min:       decimal.NewFromFloat(st.MinQty),
			known:     true,
		}
	}
	supply := make(map[string]decimal.Decimal, len(in.CentralStock))
	for _, cs := range in.CentralStock {
		supply[cs.SKU] = supply[cs.SKU].Add(decimal.NewFromFloat(cs.MinQty))
	}
	attrs := make(map[string]domain.ProductAttributes, len(in.Attributes))
	for _, a := range in.Attributes {
		attrs[a.SKU] = a
	}

	skus := make([]string, 0, len(targets))
	for sku := range targets {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	result := domain.ReplenishmentResult{
		Lines:  make([]domain.ReplenishmentLine, 0),
		Breaks: make([]domain.BreakRecord, 0),
	}

	// 4. Greedy allocation in priority order, one SKU at a time
	for _, sku := range skus {
		remaining := decimal.Max(supply[sku], decimal.Zero).Floor()
		attr := attrs[sku]

		for _, store := range in.StorePriority {
			st := stock[sku][store]

			if st.known && st.available.LessThan(st.min) {
				result.Breaks = append(result.Breaks, domain.BreakRecord{
					SKU:      sku,
					Store:    store,
					StockQty: st.available.InexactFloat64(),
					MinQty:   st.min.InexactFloat64(),
					BreakQty: st.min.Sub(st.available).InexactFloat64(),
				})
			}

			segment := targets[sku][store]
			if segment.IsZero() {
				continue
			}

			salesQty := sales[sku][store]
			if v, ok := in.EditedSales.lookup(sku, store); ok {
				salesQty = decimal.NewFromFloat(v)
			}

			allocated := allocate(segment, salesQty, st, remaining)
			remaining = remaining.Sub(allocated)

			result.Lines = append(result.Lines, domain.ReplenishmentLine{
				SKU:              sku,
				Store:            store,
				Team:             attr.Team,
				Category:         attr.Category,
				CostCenter:       attr.CostCenter,
				SegmentTarget:    segment.InexactFloat64(),
				SalesQty:         salesQty.InexactFloat64(),
				StockQty:         st.available.InexactFloat64(),
				OrderedQty:       st.ordered.InexactFloat64(),
				ReplenishmentQty: allocated.IntPart(),
			})
			result.Header.TotalReplenishmentQty += allocated.IntPart()
		}
	}

	// 5. Header
	result.Header.TotalBreakQty = int64(len(result.Breaks))
	result.Header.SelectedDeliveryOptions = append([]string(nil), in.DeliveryOptions...)
	result.Header.StoresConsidered = append([]string(nil), in.StorePriority...)
	result.Header.StartDate = in.StartDate
	result.Header.EndDate = in.EndDate
	result.Header.CreatedAt = c.now()
	result.Header.ERPTransferOrders = map[string]string{}

	return result, nil
}

// allocate returns the quantity a store receives: its need, rounded half up,
// clipped by what is left at the central warehouse.
func allocate(segment, sales decimal.Decimal, st storeStock, remaining decimal.Decimal) decimal.Decimal {
	target := decimal.Max(segment, sales)
	need := target.Sub(st.available).Sub(st.ordered)
	if need.IsNegative() {
		need = decimal.Zero
	}
	// Round keeps halves away from zero, which is half up for a non-negative need.
	need = need.Round(0)

	if remaining.IsNegative() {
		return decimal.Zero
	}
	return decimal.Min(need, remaining)
}
