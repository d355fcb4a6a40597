package cache

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/patagonia-core/stock-planning/internal/config"
)

const (
	defaultAggregateTTL = time.Minute
	redisPingTimeout    = 5 * time.Second
	purgeBatchSize      = 100
)

// keyspace is a colon separated key prefix owned by one kind of cached value.
type keyspace string

const (
	aggregateSpace keyspace = "stock_planning:aggregate"
	planningSpace  keyspace = "stock_planning:planning"
)

func (k keyspace) key(parts ...string) string {
	return string(k) + ":" + strings.Join(parts, ":")
}

// purge deletes every key of the space and returns how many were removed.
// Keys written while the scan runs may survive.
func (k keyspace) purge(ctx context.Context, client *redis.Client) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	pattern := string(k) + ":*"
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, purgeBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("scan %s: %w", k, err)
		}
		if len(keys) > 0 {
			n, err := client.Unlink(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("unlink %s: %w", k, err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	log.Debug().Str("keyspace", string(k)).Int("removed", removed).Msg("cache: keyspace purged")
	return removed, nil
}

// connectRedis opens and pings the client behind the aggregation cache and
// resolves the aggregate TTL.
func connectRedis(cfg config.CacheConfig) (*redis.Client, time.Duration, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, 0, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, 0, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultAggregateTTL
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Dur("ttl", ttl).Msg("cache: redis connected")
	return client, ttl, nil
}

// buildRedisOptions prefers REDIS_URL and falls back to host, port and db.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := cfg.RedisHost
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.RedisPort
	if port == "" {
		port = "6379"
	}

	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}
