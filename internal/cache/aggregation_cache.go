package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/patagonia-core/stock-planning/internal/config"
	"github.com/patagonia-core/stock-planning/internal/domain"
)

var deliveryOptionsKey = planningSpace.key("delivery_options")

// Aggregate kinds cached by the aggregation service.
const (
	KindSales        = "sales"
	KindSalesCount   = "sales_count"
	KindStoreStock   = "store_stock"
	KindStoreCount   = "store_stock_count"
	KindCentral      = "central_stock"
	KindCentralCount = "central_stock_count"
)

// AggregationCache holds warehouse aggregate pages and the delivery option
// list. Values are stored as JSON.
type AggregationCache interface {
	Get(ctx context.Context, kind string, filter domain.AggregateFilter, dest any) (bool, error)
	Set(ctx context.Context, kind string, filter domain.AggregateFilter, value any) error
	InvalidateAll(ctx context.Context) error

	GetDeliveryOptions(ctx context.Context) ([]string, bool, error)
	SetDeliveryOptions(ctx context.Context, options []string) error
	InvalidateDeliveryOptions(ctx context.Context) error
}

type redisAggregationCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopAggregationCache struct{}

func NewAggregationCache(cfg config.CacheConfig) (AggregationCache, error) {
	if !cfg.Enabled {
		return &noopAggregationCache{}, nil
	}

	client, ttl, err := connectRedis(cfg)
	if err != nil {
		return nil, err
	}

	return &redisAggregationCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopAggregationCache() AggregationCache {
	return &noopAggregationCache{}
}

func (c *redisAggregationCache) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

func (c *redisAggregationCache) setJSON(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisAggregationCache) Get(ctx context.Context, kind string, filter domain.AggregateFilter, dest any) (bool, error) {
	return c.getJSON(ctx, buildAggregateKey(kind, filter), dest)
}

func (c *redisAggregationCache) Set(ctx context.Context, kind string, filter domain.AggregateFilter, value any) error {
	return c.setJSON(ctx, buildAggregateKey(kind, filter), value)
}

func (c *redisAggregationCache) InvalidateAll(ctx context.Context) error {
	_, err := aggregateSpace.purge(ctx, c.client)
	return err
}

func (c *redisAggregationCache) GetDeliveryOptions(ctx context.Context) ([]string, bool, error) {
	var options []string
	ok, err := c.getJSON(ctx, deliveryOptionsKey, &options)
	return options, ok, err
}

func (c *redisAggregationCache) SetDeliveryOptions(ctx context.Context, options []string) error {
	return c.setJSON(ctx, deliveryOptionsKey, options)
}

func (c *redisAggregationCache) InvalidateDeliveryOptions(ctx context.Context) error {
	return c.client.Del(ctx, deliveryOptionsKey).Err()
}

func (n *noopAggregationCache) Get(ctx context.Context, kind string, filter domain.AggregateFilter, dest any) (bool, error) {
	return false, nil
}

func (n *noopAggregationCache) Set(ctx context.Context, kind string, filter domain.AggregateFilter, value any) error {
	return nil
}

func (n *noopAggregationCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopAggregationCache) GetDeliveryOptions(ctx context.Context) ([]string, bool, error) {
	return nil, false, nil
}

func (n *noopAggregationCache) SetDeliveryOptions(ctx context.Context, options []string) error {
	return nil
}

func (n *noopAggregationCache) InvalidateDeliveryOptions(ctx context.Context) error {
	return nil
}

func buildAggregateKey(kind string, filter domain.AggregateFilter) string {
	return aggregateSpace.key(kind, aggregateFilterHash(filter))
}

func aggregateFilterHash(filter domain.AggregateFilter) string {
	parts := []string{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		parts = append(parts, "q="+strings.ToUpper(q))
	}
	if !filter.Start.IsZero() {
		parts = append(parts, "start="+filter.Start.UTC().Format(time.RFC3339))
	}
	if !filter.End.IsZero() {
		parts = append(parts, "end="+filter.End.UTC().Format(time.RFC3339))
	}
	if filter.NoPagination {
		parts = append(parts, "all=true")
	} else {
		parts = append(parts, fmt.Sprintf("page=%d", filter.Page), fmt.Sprintf("size=%d", filter.PageSize))
	}
	if filter.SortKey != "" {
		parts = append(parts, "sort="+strings.ToUpper(strings.TrimSpace(filter.SortKey)))
	}
	if filter.SortDir != "" {
		parts = append(parts, "dir="+strings.ToLower(strings.TrimSpace(filter.SortDir)))
	}

	sort.Strings(parts)
	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
