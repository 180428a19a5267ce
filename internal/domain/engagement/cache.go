package engagement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	configKeyPrefix   = "engagement:config:"
	campaignKeyPrefix = "engagement:campaign:"
)

// CachedStore is a read-through cache in front of the Postgres repository.
// Configs are read fresh on every earning attempt, so the TTL is the upper
// bound on how long an operator change takes to reach all replicas. Redis is
// optional; with a nil client every read falls through to Postgres.
type CachedStore struct {
	inner Store
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedStore(inner Store, redisClient *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{inner: inner, redis: redisClient, ttl: ttl}
}

func (c *CachedStore) GetConfig(ctx context.Context, action string) (*ActionConfig, error) {
	if c.redis != nil {
		var cfg ActionConfig
		if ok := c.cacheGet(ctx, configKeyPrefix+action, &cfg); ok {
			return &cfg, nil
		}
	}

	cfg, err := c.inner.GetConfig(ctx, action)
	if err != nil {
		return nil, err
	}

	c.cacheSet(ctx, configKeyPrefix+action, cfg)
	return cfg, nil
}

func (c *CachedStore) ActiveCampaign(ctx context.Context, action string, now time.Time) (*Campaign, error) {
	if c.redis != nil {
		var camp Campaign
		if ok := c.cacheGet(ctx, campaignKeyPrefix+action, &camp); ok {
			// A cached campaign may have lapsed inside the TTL window.
			if camp.Active(now) {
				return &camp, nil
			}
			return nil, nil
		}
	}

	camp, err := c.inner.ActiveCampaign(ctx, action, now)
	if err != nil {
		return nil, err
	}
	if camp != nil {
		c.cacheSet(ctx, campaignKeyPrefix+action, camp)
	}
	return camp, nil
}

// Invalidate drops cached state for an action after an operator change.
func (c *CachedStore) Invalidate(ctx context.Context, action string) {
	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, configKeyPrefix+action, campaignKeyPrefix+action).Err(); err != nil {
		log.Warn().Err(err).Str("action", action).Msg("failed to invalidate engagement cache")
	}
}

func (c *CachedStore) cacheGet(ctx context.Context, key string, v interface{}) bool {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("engagement cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

func (c *CachedStore) cacheSet(ctx context.Context, key string, v interface{}) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("engagement cache write failed")
	}
}
