package cache

import (
	"context"
	"time"

	"github.com/aithernet/airelay/internal/domain"
	"github.com/aithernet/airelay/internal/port"
	"github.com/aithernet/airelay/internal/redis"
	"github.com/aithernet/airelay/pkg/logger"
)

// CachingStore wraps a Store with a short-TTL Redis cache for user lookups.
// Cache failures fall through to the store; the cache is never authoritative.
type CachingStore struct {
	port.Store
	redis *redis.RedisClient
	ttl   time.Duration
	log   logger.Logger
}

func NewCachingStore(store port.Store, rc *redis.RedisClient, ttl time.Duration, log logger.Logger) *CachingStore {
	return &CachingStore{Store: store, redis: rc, ttl: ttl, log: log}
}

func (c *CachingStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	username, ok, err := c.redis.CachedUsername(ctx, id)
	if err != nil {
		c.log.Warnf("user cache read failed for %d: %v", id, err)
	} else if ok {
		return &domain.User{ID: id, Username: username}, nil
	}

	user, err := c.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.redis.CacheUsername(ctx, id, user.Username, c.ttl); err != nil {
		c.log.Warnf("user cache write failed for %d: %v", id, err)
	}
	return user, nil
}
