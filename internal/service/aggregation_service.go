package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/cache"
	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/repository"
)

const defaultAggregatePageSize = 10

// SalesRow is the sales of one SKU pivoted by store.
type SalesRow struct {
	SKU     string             `json:"sku"`
	ByStore map[string]float64 `json:"byStore"`
	Total   float64            `json:"total"`
}

// StockRow is the stock of one SKU pivoted by store.
type StockRow struct {
	SKU     string                        `json:"sku"`
	ByStore map[string]domain.StockRecord `json:"byStore"`
}

type AggregationService struct {
	agg   repository.Aggregator
	cache cache.AggregationCache
}

func NewAggregationService(agg repository.Aggregator, cacheImpl cache.AggregationCache) *AggregationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopAggregationCache()
	}
	return &AggregationService{agg: agg, cache: cacheImpl}
}

func normalizeAggregateFilter(f domain.AggregateFilter) (domain.AggregateFilter, error) {
	if f.Start.IsZero() || f.End.IsZero() {
		return f, domain.NewValidationError("dates", "las fechas de inicio y término son obligatorias")
	}
	if f.End.Before(f.Start) {
		return f, domain.NewValidationError("endDate", "la fecha de término debe ser posterior a la de inicio")
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultAggregatePageSize
	}
	return f, nil
}

// cached reads kind from the cache or loads and stores it. Cache failures are
// logged and never fail the read.
func cached[T any](ctx context.Context, c cache.AggregationCache, kind string, f domain.AggregateFilter, load func() (T, error)) (T, error) {
	var out T
	if ok, err := c.Get(ctx, kind, f, &out); err == nil && ok {
		return out, nil
	} else if err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("aggregation: cache get failed")
	}

	out, err := load()
	if err != nil {
		return out, err
	}

	if err := c.Set(ctx, kind, f, out); err != nil {
		log.Warn().Err(err).Str("kind", kind).Msg("aggregation: cache set failed")
	}
	return out, nil
}

// Sales returns a page of SKUs with their sales per store.
func (s *AggregationService) Sales(ctx context.Context, f domain.AggregateFilter) (domain.PageResponse[SalesRow], error) {
	f, err := normalizeAggregateFilter(f)
	if err != nil {
		return domain.PageResponse[SalesRow]{}, err
	}

	records, err := cached(ctx, s.cache, cache.KindSales, f, func() ([]domain.SalesRecord, error) {
		return s.agg.FetchSales(ctx, f)
	})
	if err != nil {
		return domain.PageResponse[SalesRow]{}, err
	}
	total, err := cached(ctx, s.cache, cache.KindSalesCount, f, func() (int, error) {
		return s.agg.CountSales(ctx, f)
	})
	if err != nil {
		return domain.PageResponse[SalesRow]{}, err
	}

	rows := PivotSales(records)
	sortSalesRows(rows, f.SortKey, f.SortDir)
	return domain.NewPageResponse(rows, total, f.Page, f.PageSize), nil
}

// CentralStock returns a page of the central warehouse stock.
func (s *AggregationService) CentralStock(ctx context.Context, f domain.AggregateFilter) (domain.PageResponse[domain.CentralStock], error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultAggregatePageSize
	}
	// Stock is a snapshot; the date window does not apply.
	f.Start, f.End = time.Time{}, time.Time{}

	rows, err := cached(ctx, s.cache, cache.KindCentral, f, func() ([]domain.CentralStock, error) {
		return s.agg.FetchCentralStock(ctx, f)
	})
	if err != nil {
		return domain.PageResponse[domain.CentralStock]{}, err
	}
	total, err := cached(ctx, s.cache, cache.KindCentralCount, f, func() (int, error) {
		return s.agg.CountCentralStock(ctx, f)
	})
	if err != nil {
		return domain.PageResponse[domain.CentralStock]{}, err
	}

	return domain.NewPageResponse(rows, total, f.Page, f.PageSize), nil
}

// StoreStock returns a page of SKUs with their stock per store. It always
// reads through to the warehouse.
func (s *AggregationService) StoreStock(ctx context.Context, f domain.AggregateFilter) (domain.PageResponse[StockRow], error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultAggregatePageSize
	}

	records, err := s.agg.FetchStoreStock(ctx, f)
	if err != nil {
		return domain.PageResponse[StockRow]{}, err
	}
	total, err := s.agg.CountStoreStock(ctx, f)
	if err != nil {
		return domain.PageResponse[StockRow]{}, err
	}

	return domain.NewPageResponse(PivotStock(records), total, f.Page, f.PageSize), nil
}

// Invalidate drops every cached aggregate.
func (s *AggregationService) Invalidate(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}

// PivotSales folds store rows into one row per SKU, keeping SKU order of
// first appearance.
func PivotSales(records []domain.SalesRecord) []SalesRow {
	rows := make([]SalesRow, 0)
	index := make(map[string]int)
	for _, r := range records {
		i, ok := index[r.SKU]
		if !ok {
			i = len(rows)
			index[r.SKU] = i
			rows = append(rows, SalesRow{SKU: r.SKU, ByStore: map[string]float64{}})
		}
		rows[i].ByStore[r.Store] += r.Qty
		rows[i].Total += r.Qty
	}
	return rows
}

// sortSalesRows applies the page order inside the page. The warehouse picks
// the page by the sort key but returns its rows by SKU.
func sortSalesRows(rows []SalesRow, key, dir string) {
	key = strings.ToUpper(strings.TrimSpace(key))
	desc := strings.EqualFold(dir, "desc")
	value := func(r SalesRow) float64 {
		if key == "TOTAL" {
			return r.Total
		}
		for store, qty := range r.ByStore {
			if strings.EqualFold(store, key) {
				return qty
			}
		}
		return 0
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if key == "" || key == "SKU" {
			if desc && key == "SKU" {
				return rows[i].SKU > rows[j].SKU
			}
			return rows[i].SKU < rows[j].SKU
		}
		if desc {
			return value(rows[i]) > value(rows[j])
		}
		return value(rows[i]) < value(rows[j])
	})
}

// PivotStock folds store rows into one row per SKU sorted by SKU.
func PivotStock(records []domain.StockRecord) []StockRow {
	bySKU := make(map[string]map[string]domain.StockRecord)
	for _, r := range records {
		if bySKU[r.SKU] == nil {
			bySKU[r.SKU] = make(map[string]domain.StockRecord)
		}
		bySKU[r.SKU][r.Store] = r
	}

	rows := make([]StockRow, 0, len(bySKU))
	for sku, stores := range bySKU {
		rows = append(rows, StockRow{SKU: sku, ByStore: stores})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })
	return rows
}
