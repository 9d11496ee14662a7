// Package cache fronts the verifier with a Redis-backed result cache.
// Rows outlive their TTL so the refresh pass can find and re-probe them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/infodancer/everify/internal/metrics"
	"github.com/infodancer/everify/internal/verifier"
)

const resultKeyPrefix = "everify:result:"

// Categorizer produces a fresh verdict for an address.
type Categorizer interface {
	Categorize(ctx context.Context, email string) verifier.Verdict
}

// Registry is the primary address store the refresh pass feeds.
type Registry interface {
	Add(ctx context.Context, email string) error
}

// Cache serves verdicts from Redis, probing on miss. Concurrent fetches
// of the same address share one probe.
type Cache struct {
	rdb         *redis.Client
	ttl         time.Duration
	categorizer Categorizer
	registry    Registry
	group       singleflight.Group
	logger      *slog.Logger
	collector   metrics.Collector
}

// New creates a Cache. The registry may be nil when no refresh pass runs.
func New(rdb *redis.Client, ttl time.Duration, categorizer Categorizer, registry Registry, logger *slog.Logger, collector metrics.Collector) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Cache{
		rdb:         rdb,
		ttl:         ttl,
		categorizer: categorizer,
		registry:    registry,
		logger:      logger,
		collector:   collector,
	}
}

// Fetch returns the cached verdict for the address when it is younger
// than the TTL, probing and caching otherwise.
func (c *Cache) Fetch(ctx context.Context, email string) (verifier.Verdict, error) {
	addr := normalize(email)
	v, err, _ := c.group.Do(addr, func() (any, error) {
		if verdict, ok := c.lookup(ctx, addr); ok {
			c.collector.CacheHit()
			return verdict, nil
		}
		c.collector.CacheMiss()

		verdict := c.categorizer.Categorize(ctx, email)
		if err := c.put(ctx, addr, verdict); err != nil {
			c.logger.Warn("caching verdict failed", "email", addr, "error", err)
		}
		return verdict, nil
	})
	if err != nil {
		return verifier.Verdict{}, err
	}
	return v.(verifier.Verdict), nil
}

// Store upserts a verdict, stamping it as fresh.
func (c *Cache) Store(ctx context.Context, email string, verdict verifier.Verdict) error {
	return c.put(ctx, normalize(email), verdict)
}

// AllByCategory returns every cached verdict whose category matches,
// case-insensitively. Expired rows are included; callers filtering for
// reporting generally want them.
func (c *Cache) AllByCategory(ctx context.Context, category string) ([]verifier.Verdict, error) {
	var verdicts []verifier.Verdict
	iter := c.rdb.Scan(ctx, 0, resultKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := c.rdb.HGet(ctx, iter.Val(), "json").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading cached verdict: %w", err)
		}
		var verdict verifier.Verdict
		if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
			c.logger.Warn("skipping unreadable cached verdict", "key", iter.Val(), "error", err)
			continue
		}
		if strings.EqualFold(verdict.Category, category) {
			verdicts = append(verdicts, verdict)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning result cache: %w", err)
	}
	return verdicts, nil
}

// RefreshExpired re-probes every row older than the TTL, registering the
// address in the primary store first. It returns how many rows were
// refreshed.
func (c *Cache) RefreshExpired(ctx context.Context) (int, error) {
	refreshed := 0
	iter := c.rdb.Scan(ctx, 0, resultKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		addr := strings.TrimPrefix(key, resultKeyPrefix)

		cachedAt, err := c.cachedAt(ctx, key)
		if err != nil {
			c.logger.Warn("skipping row with unreadable timestamp", "key", key, "error", err)
			continue
		}
		if time.Since(cachedAt) < c.ttl {
			continue
		}

		if c.registry != nil {
			if err := c.registry.Add(ctx, addr); err != nil {
				c.logger.Warn("registering expired address failed", "email", addr, "error", err)
			}
		}

		verdict := c.categorizer.Categorize(ctx, addr)
		if err := c.put(ctx, addr, verdict); err != nil {
			return refreshed, fmt.Errorf("storing refreshed verdict for %s: %w", addr, err)
		}
		refreshed++

		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
	}
	if err := iter.Err(); err != nil {
		return refreshed, fmt.Errorf("scanning result cache: %w", err)
	}
	c.collector.RefreshCompleted(refreshed)
	return refreshed, nil
}

// lookup reads one row. Any defect (missing row, stale timestamp,
// unreadable JSON) is a miss; the row itself is left in place.
func (c *Cache) lookup(ctx context.Context, addr string) (verifier.Verdict, bool) {
	key := resultKeyPrefix + addr
	row, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil || len(row) == 0 {
		return verifier.Verdict{}, false
	}

	cachedAt, err := time.Parse(time.RFC3339Nano, row["cached_at"])
	if err != nil {
		c.logger.Warn("cached verdict has unreadable timestamp", "email", addr, "error", err)
		return verifier.Verdict{}, false
	}
	if time.Since(cachedAt) >= c.ttl {
		return verifier.Verdict{}, false
	}

	var verdict verifier.Verdict
	if err := json.Unmarshal([]byte(row["json"]), &verdict); err != nil {
		c.logger.Warn("cached verdict is unreadable", "email", addr, "error", err)
		return verifier.Verdict{}, false
	}
	return verdict, true
}

// cachedAt reads and parses one row's cached_at timestamp.
func (c *Cache) cachedAt(ctx context.Context, key string) (time.Time, error) {
	raw, err := c.rdb.HGet(ctx, key, "cached_at").Result()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func (c *Cache) put(ctx context.Context, addr string, verdict verifier.Verdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}
	key := resultKeyPrefix + addr
	return c.rdb.HSet(ctx, key,
		"json", string(data),
		"cached_at", time.Now().Format(time.RFC3339Nano),
	).Err()
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
