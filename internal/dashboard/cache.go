// Package dashboard is the read-side summary cache. It never participates in
// transitions; it is invalidated by published activity events and rebuilt
// from the store on demand.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"example.com/tracker/internal/domain"
)

// SummaryKey is the Redis key holding the serialized dashboard summary.
const SummaryKey = "tracker:dashboard:summary"

// SummarySource produces a fresh summary when the cache misses.
type SummarySource interface {
	StatusCounts(ctx context.Context) (domain.Summary, error)
}

// Cache wraps Redis around a SummarySource with a TTL safety net. A cache
// failure is never surfaced to callers; the source is authoritative.
type Cache struct {
	client *redis.Client
	source SummarySource
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, source SummarySource, ttl time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{client: client, source: source, ttl: ttl, logger: logger}
}

// Summary returns the cached summary, rebuilding it from the source on a miss.
func (c *Cache) Summary(ctx context.Context) (domain.Summary, error) {
	raw, err := c.client.Get(ctx, SummaryKey).Bytes()
	if err == nil {
		var summary domain.Summary
		if unmarshalErr := json.Unmarshal(raw, &summary); unmarshalErr == nil {
			return summary, nil
		}
		// Corrupt entry; fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Msg("dashboard cache read failed")
	}

	summary, err := c.source.StatusCounts(ctx)
	if err != nil {
		return domain.Summary{}, err
	}

	if encoded, marshalErr := json.Marshal(summary); marshalErr == nil {
		if setErr := c.client.Set(ctx, SummaryKey, encoded, c.ttl).Err(); setErr != nil {
			c.logger.Warn().Err(setErr).Msg("dashboard cache write failed")
		}
	}
	return summary, nil
}

// Invalidate drops the cached summary so the next read recomputes it.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, SummaryKey).Err()
}

// Invalidator is the write-free face of the cache used by event consumers.
type Invalidator struct {
	client *redis.Client
}

// NewInvalidator constructs an Invalidator.
func NewInvalidator(client *redis.Client) *Invalidator {
	return &Invalidator{client: client}
}

// Invalidate drops the cached summary.
func (i *Invalidator) Invalidate(ctx context.Context) error {
	return i.client.Del(ctx, SummaryKey).Err()
}
