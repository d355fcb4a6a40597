package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patagonia-core/stock-planning/internal/domain"
)

const defaultPageSize = 10

// Sale is one invoiced sales line.
type Sale struct {
	SKU   string
	Store string
	Qty   float64
	Date  time.Time
}

// Warehouse is an in-memory stand-in for the analytical warehouse. It follows
// the same pagination rules as the SQL aggregator: sales and store stock page
// by SKU, central stock pages by row.
type Warehouse struct {
	mu sync.RWMutex

	sales      []Sale
	storeStock []domain.StockRecord
	central    []domain.CentralStock
	attributes map[string]domain.ProductAttributes

	// Calls counts the Fetch calls, keyed by method name.
	Calls map[string]int
}

func NewWarehouse() *Warehouse {
	return &Warehouse{
		attributes: make(map[string]domain.ProductAttributes),
		Calls:      make(map[string]int),
	}
}

func (w *Warehouse) AddSales(sales ...Sale) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sales = append(w.sales, sales...)
}

func (w *Warehouse) AddStoreStock(rows ...domain.StockRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.storeStock = append(w.storeStock, rows...)
}

func (w *Warehouse) AddCentralStock(rows ...domain.CentralStock) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.central = append(w.central, rows...)
}

func (w *Warehouse) AddAttributes(rows ...domain.ProductAttributes) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range rows {
		w.attributes[a.SKU] = a
	}
}

func (w *Warehouse) count(name string) {
	w.Calls[name]++
}

func matchSKU(sku, query string) bool {
	q := strings.ToUpper(strings.TrimSpace(query))
	return q == "" || strings.Contains(strings.ToUpper(sku), q)
}

func pageOf(f domain.AggregateFilter) (int, int) {
	size := f.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	return f.Offset(), size
}

// pageSKUs picks the SKUs of the requested page.
func pageSKUs(skus []string, f domain.AggregateFilter) map[string]bool {
	out := make(map[string]bool)
	if f.NoPagination {
		for _, s := range skus {
			out[s] = true
		}
		return out
	}
	offset, size := pageOf(f)
	for _, s := range paginate(skus, offset, size) {
		out[s] = true
	}
	return out
}

func (w *Warehouse) salesTotals(f domain.AggregateFilter) (map[string]map[string]float64, []string) {
	totals := make(map[string]map[string]float64)
	for _, s := range w.sales {
		if s.Date.Before(f.Start) || s.Date.After(f.End) || !matchSKU(s.SKU, f.Query) {
			continue
		}
		if totals[s.SKU] == nil {
			totals[s.SKU] = make(map[string]float64)
		}
		totals[s.SKU][s.Store] += s.Qty
	}

	skus := make([]string, 0, len(totals))
	for sku := range totals {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	key := strings.ToUpper(strings.TrimSpace(f.SortKey))
	desc := strings.EqualFold(f.SortDir, "desc")
	value := func(sku string) float64 {
		var v float64
		for store, qty := range totals[sku] {
			if key == "TOTAL" || strings.EqualFold(store, key) {
				v += qty
			}
		}
		return v
	}
	switch key {
	case "", "SKU":
		if desc && key == "SKU" {
			sort.Sort(sort.Reverse(sort.StringSlice(skus)))
		}
	default:
		sort.SliceStable(skus, func(i, j int) bool {
			if desc {
				return value(skus[i]) > value(skus[j])
			}
			return value(skus[i]) < value(skus[j])
		})
	}
	return totals, skus
}

func (w *Warehouse) FetchSales(_ context.Context, f domain.AggregateFilter) ([]domain.SalesRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count("FetchSales")

	totals, skus := w.salesTotals(f)
	page := pageSKUs(skus, f)

	out := make([]domain.SalesRecord, 0)
	for _, sku := range skus {
		if !page[sku] {
			continue
		}
		stores := make([]string, 0, len(totals[sku]))
		for store := range totals[sku] {
			stores = append(stores, store)
		}
		sort.Strings(stores)
		for _, store := range stores {
			out = append(out, domain.SalesRecord{SKU: sku, Store: store, Qty: totals[sku][store]})
		}
	}
	return out, nil
}

func (w *Warehouse) CountSales(_ context.Context, f domain.AggregateFilter) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, skus := w.salesTotals(f)
	return len(skus), nil
}

func (w *Warehouse) storeSKUs(f domain.AggregateFilter) []string {
	seen := make(map[string]bool)
	skus := make([]string, 0)
	for _, r := range w.storeStock {
		if matchSKU(r.SKU, f.Query) && !seen[r.SKU] {
			seen[r.SKU] = true
			skus = append(skus, r.SKU)
		}
	}
	sort.Strings(skus)
	return skus
}

func (w *Warehouse) FetchStoreStock(_ context.Context, f domain.AggregateFilter) ([]domain.StockRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count("FetchStoreStock")

	page := pageSKUs(w.storeSKUs(f), f)
	out := make([]domain.StockRecord, 0)
	for _, r := range w.storeStock {
		if page[r.SKU] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SKU != out[j].SKU {
			return out[i].SKU < out[j].SKU
		}
		return out[i].Store < out[j].Store
	})
	return out, nil
}

func (w *Warehouse) CountStoreStock(_ context.Context, f domain.AggregateFilter) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.storeSKUs(f)), nil
}

func (w *Warehouse) centralRows(f domain.AggregateFilter) []domain.CentralStock {
	out := make([]domain.CentralStock, 0)
	for _, r := range w.central {
		if matchSKU(r.SKU, f.Query) {
			out = append(out, r)
		}
	}

	desc := strings.EqualFold(f.SortDir, "desc")
	less := func(a, b domain.CentralStock) bool { return a.SKU < b.SKU }
	switch strings.ToUpper(strings.TrimSpace(f.SortKey)) {
	case "STOCKERP":
		less = func(a, b domain.CentralStock) bool { return a.ERPQty < b.ERPQty }
	case "STOCKWMS":
		less = func(a, b domain.CentralStock) bool { return a.WMSQty < b.WMSQty }
	case "MINSTOCK":
		less = func(a, b domain.CentralStock) bool { return a.MinQty < b.MinQty }
	case "SKU":
	default:
		desc = false
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func (w *Warehouse) FetchCentralStock(_ context.Context, f domain.AggregateFilter) ([]domain.CentralStock, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count("FetchCentralStock")

	rows := w.centralRows(f)
	if f.NoPagination {
		return rows, nil
	}
	offset, size := pageOf(f)
	return paginate(rows, offset, size), nil
}

func (w *Warehouse) CountCentralStock(_ context.Context, f domain.AggregateFilter) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.centralRows(f)), nil
}

func (w *Warehouse) FetchProductAttributes(_ context.Context, skus []string) ([]domain.ProductAttributes, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count("FetchProductAttributes")

	out := make([]domain.ProductAttributes, 0, len(skus))
	for _, sku := range skus {
		if a, ok := w.attributes[sku]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
