// Package cache provides a Redis-backed read-through cache for resolved
// availability windows. Failures degrade to a cache miss; the store stays
// the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rkarimov/bookwise/internal/availability"
	"github.com/rkarimov/bookwise/internal/timeutil"
)

const (
	windowTTL = 60 * time.Second
	keyPrefix = "windows:"
)

type WindowCache struct {
	rdb    *redis.Client
	logger *slog.Logger
}

func NewWindowCache(rdb *redis.Client, logger *slog.Logger) *WindowCache {
	return &WindowCache{rdb: rdb, logger: logger}
}

func windowKey(subjectID uuid.UUID, day timeutil.CivilDate) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, subjectID, day)
}

func (c *WindowCache) Get(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate) ([]availability.Interval, bool) {
	raw, err := c.rdb.Get(ctx, windowKey(subjectID, day)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("window cache read failed", "err", err, "subject_id", subjectID)
		}
		return nil, false
	}
	var windows []availability.Interval
	if err := json.Unmarshal(raw, &windows); err != nil {
		c.logger.Warn("window cache entry corrupt", "err", err, "subject_id", subjectID)
		return nil, false
	}
	return windows, true
}

func (c *WindowCache) Set(ctx context.Context, subjectID uuid.UUID, day timeutil.CivilDate, windows []availability.Interval) {
	if windows == nil {
		// Cache empty days too; a day off is the common case worth caching.
		windows = []availability.Interval{}
	}
	raw, err := json.Marshal(windows)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, windowKey(subjectID, day), raw, windowTTL).Err(); err != nil {
		c.logger.Warn("window cache write failed", "err", err, "subject_id", subjectID)
	}
}

// Invalidate drops every cached day for the subject. Called after schedule
// writes so rule changes surface immediately instead of after TTL expiry.
func (c *WindowCache) Invalidate(ctx context.Context, subjectID uuid.UUID) {
	pattern := fmt.Sprintf("%s%s:*", keyPrefix, subjectID)
	iter := c.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("window cache scan failed", "err", err, "subject_id", subjectID)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("window cache invalidate failed", "err", err, "subject_id", subjectID)
	}
}
