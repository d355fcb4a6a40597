package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patagonia-core/stock-planning/internal/config"
	"github.com/patagonia-core/stock-planning/internal/domain"
)

func TestBuildAggregateKeyIsStable(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	a := buildAggregateKey(KindSales, domain.AggregateFilter{Query: " ab ", Start: start, End: end, Page: 1, PageSize: 10, SortDir: "DESC"})
	b := buildAggregateKey(KindSales, domain.AggregateFilter{Query: "AB", Start: start, End: end, Page: 1, PageSize: 10, SortDir: "desc"})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "stock_planning:aggregate:sales:"))

	c := buildAggregateKey(KindSales, domain.AggregateFilter{Query: "AB", Start: start, End: end, Page: 2, PageSize: 10})
	assert.NotEqual(t, a, c)

	d := buildAggregateKey(KindStoreStock, domain.AggregateFilter{Query: "AB", Start: start, End: end, Page: 1, PageSize: 10, SortDir: "desc"})
	assert.NotEqual(t, a, d)
}

func TestNoopAggregationCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewAggregationCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, KindSales, domain.AggregateFilter{}, []int{1}))
	var out []int
	hit, err := c.Get(ctx, KindSales, domain.AggregateFilter{}, &out)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = c.GetDeliveryOptions(ctx)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisHost: "cache", RedisDB: 2})
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = buildRedisOptions(config.CacheConfig{RedisURL: "redis://:secret@redis.local:6380/1"})
	require.NoError(t, err)
	assert.Equal(t, "redis.local:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 1, opts.DB)

	_, err = buildRedisOptions(config.CacheConfig{RedisURL: "http://nope"})
	assert.Error(t, err)
}

func TestKeyspaces(t *testing.T) {
	assert.Equal(t, "stock_planning:aggregate:sales:abc", aggregateSpace.key(KindSales, "abc"))
	assert.Equal(t, "stock_planning:planning:delivery_options", deliveryOptionsKey)
	assert.False(t, strings.HasPrefix(deliveryOptionsKey, string(aggregateSpace)+":"))
}
