// Package cache holds the read-through cache for per-user invitation list
// views. Entries expire on a bounded TTL and are invalidated explicitly
// whenever an invitation involving the user is created or transitioned.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/havenapp/whisper-server/internal/model"
	redisclient "github.com/havenapp/whisper-server/internal/redis"
)

// ListCache is the view-cache contract the invitation service depends on.
// Misses and backend failures are indistinguishable: both mean "go to the
// store", so the cache can never affect correctness.
type ListCache interface {
	GetViews(ctx context.Context, userID string) (*model.InvitationViews, bool)
	SetViews(ctx context.Context, userID string, views *model.InvitationViews)
	Invalidate(ctx context.Context, userIDs ...string)
}

type redisListCache struct {
	redis *redisclient.Client
	ttl   time.Duration
}

func NewListCache(redisClient *redisclient.Client, ttl time.Duration) ListCache {
	return &redisListCache{redis: redisClient, ttl: ttl}
}

func (c *redisListCache) GetViews(ctx context.Context, userID string) (*model.InvitationViews, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	data, err := c.redis.Get(ctx, redisclient.ListCacheKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}

	var views model.InvitationViews
	if err := json.Unmarshal(data, &views); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("corrupt list cache entry, dropping")
		c.Invalidate(ctx, userID)
		return nil, false
	}

	return &views, true
}

func (c *redisListCache) SetViews(ctx context.Context, userID string, views *model.InvitationViews) {
	if c.ttl <= 0 {
		return
	}

	data, err := json.Marshal(views)
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to marshal list views for cache")
		return
	}

	if err := c.redis.Set(ctx, redisclient.ListCacheKey(userID), data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to cache list views")
	}
}

func (c *redisListCache) Invalidate(ctx context.Context, userIDs ...string) {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = redisclient.ListCacheKey(id)
	}

	if len(keys) == 0 {
		return
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("userIds", userIDs).Msg("failed to invalidate list cache")
	}
}
