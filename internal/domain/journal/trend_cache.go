package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"voicenote-server-go/internal/platform/logging"
)

// TrendCache keeps computed trend series in redis so chart refreshes do
// not re-aggregate on every request. A nil client disables caching.
type TrendCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *logging.Logger
}

func NewTrendCache(client *redis.Client, prefix string, ttl time.Duration, logger *logging.Logger) *TrendCache {
	if prefix == "" {
		prefix = "voicenote:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TrendCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger,
	}
}

func (c *TrendCache) key(userID uint, days int) string {
	return fmt.Sprintf("%strends:%d:%d", c.prefix, userID, days)
}

// userPattern matches every cached span for the user.
func (c *TrendCache) userPattern(userID uint) string {
	return fmt.Sprintf("%strends:%d:*", c.prefix, userID)
}

// Get returns the cached series for (user, days) when present.
func (c *TrendCache) Get(ctx context.Context, userID uint, days int) ([]TrendPoint, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(userID, days)).Bytes()
	if err != nil {
		return nil, false
	}
	var points []TrendPoint
	if err := sonic.Unmarshal(data, &points); err != nil {
		return nil, false
	}
	return points, true
}

// Put stores the series; cache failures are logged and ignored.
func (c *TrendCache) Put(ctx context.Context, userID uint, days int, points []TrendPoint) {
	if c == nil || c.client == nil {
		return
	}
	data, err := sonic.Marshal(points)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(userID, days), data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WarnTag("Journal", "trend cache write failed: %v", err)
	}
}

// Invalidate drops every cached span for the user.
func (c *TrendCache) Invalidate(ctx context.Context, userID uint) {
	if c == nil || c.client == nil {
		return
	}
	iter := c.client.Scan(ctx, 0, c.userPattern(userID), 50).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil && c.logger != nil {
			c.logger.WarnTag("Journal", "trend cache invalidation failed: %v", err)
		}
	}
}

func marshalJSON(v any) ([]byte, error) {
	return sonic.Marshal(v)
}
