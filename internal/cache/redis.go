// Package cache fronts the store's dedup check with Redis. The store's
// unique constraint on external_id remains the final safety net; a
// cache failure only costs a database lookup.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const seenTTL = 48 * time.Hour

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Seen reports whether the external identity was ingested recently.
func (rc *RedisCache) Seen(ctx context.Context, externalID string) (bool, error) {
	n, err := rc.client.Exists(ctx, "msgid:"+externalID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen records an ingested external identity. Entries expire so
// the set tracks roughly the recent polling horizon, not all history.
func (rc *RedisCache) MarkSeen(ctx context.Context, externalID string, at time.Time) error {
	return rc.client.Set(ctx, "msgid:"+externalID, at.Format(time.RFC3339), seenTTL).Err()
}
