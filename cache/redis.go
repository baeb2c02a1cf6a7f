package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const top3KeyPrefix = "leaderboard:day:"

// LeaderboardCache is a read-through cache for daily top-3 responses.
// Postgres stays the source of truth; a cold or failing Redis only costs a
// DB read, so callers treat every error here as a miss.
type LeaderboardCache struct {
	client *redis.Client
}

func NewLeaderboardCache(addr string) *LeaderboardCache {
	return &LeaderboardCache{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
	}
}

func dayKey(day int64) string {
	return fmt.Sprintf("%s%d", top3KeyPrefix, day)
}

// GetTop3 returns the cached serialized top-3 for a day, or redis.Nil.
func (c *LeaderboardCache) GetTop3(ctx context.Context, day int64) ([]byte, error) {
	return c.client.Get(ctx, dayKey(day)).Bytes()
}

func (c *LeaderboardCache) SetTop3(ctx context.Context, day int64, data []byte, ttl time.Duration) error {
	return c.client.Set(ctx, dayKey(day), data, ttl).Err()
}

// Invalidate drops a day's cached top-3 after the ranking table changed.
func (c *LeaderboardCache) Invalidate(ctx context.Context, day int64) error {
	return c.client.Del(ctx, dayKey(day)).Err()
}
