package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/cache"
	"github.com/patagonia-core/stock-planning/internal/domain"
	"github.com/patagonia-core/stock-planning/internal/repository/memory"
)

var (
	testStores = []string{"S1", "S2"}
	jan1       = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31      = time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store     *memory.Store
	segments  *memory.SegmentationRepository
	runs      *memory.ReplenishmentRepository
	warehouse *memory.Warehouse
}

func newFixture() *fixture {
	store := memory.NewStore()
	return &fixture{
		store:     store,
		segments:  memory.NewSegmentationRepository(store),
		runs:      memory.NewReplenishmentRepository(store),
		warehouse: memory.NewWarehouse(),
	}
}

// seedA1 loads SKU A1: segment 10 in S1, sales 2, stock 3 with minimum 5 and
// 100 units at the central warehouse.
func (f *fixture) seedA1(t *testing.T) {
	t.Helper()
	_, err := f.segments.Replace(context.Background(), []domain.SegmentationRecord{
		{SKU: "A1", DeliveryOption: "shipping", Targets: map[string]float64{"S1": 10, "S2": 0}},
	})
	require.NoError(t, err)

	f.warehouse.AddSales(memory.Sale{SKU: "A1", Store: "S1", Qty: 2, Date: jan1.AddDate(0, 0, 5)})
	f.warehouse.AddStoreStock(domain.StockRecord{SKU: "A1", Store: "S1", ERPAvailable: 3, WMSAvailable: 3, MinQty: 5})
	f.warehouse.AddCentralStock(domain.CentralStock{SKU: "A1", ERPQty: 100, WMSQty: 120, MinQty: 100})
	f.warehouse.AddAttributes(domain.ProductAttributes{
		SKU: "A1", Team: "OUTDOOR", Category: "JACKETS", CostCenter: "CC1",
		ItemNumber: "ITEM-A1", ColorID: "BLK", SizeID: "M", ConfigurationID: "STD", StyleID: "ST1",
		Description: "Down jacket",
	})
}

// mapCache is an AggregationCache kept in a map, storing JSON like the redis
// implementation.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	options []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) key(kind string, f domain.AggregateFilter) string {
	raw, _ := json.Marshal(f)
	return kind + ":" + string(raw)
}

func (c *mapCache) Get(_ context.Context, kind string, f domain.AggregateFilter, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[c.key(kind, f)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (c *mapCache) Set(_ context.Context, kind string, f domain.AggregateFilter, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[c.key(kind, f)] = payload
	return nil
}

func (c *mapCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}

func (c *mapCache) GetDeliveryOptions(context.Context) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options, c.options != nil, nil
}

func (c *mapCache) SetDeliveryOptions(_ context.Context, options []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = options
	return nil
}

func (c *mapCache) InvalidateDeliveryOptions(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = nil
	return nil
}

var _ cache.AggregationCache = (*mapCache)(nil)
