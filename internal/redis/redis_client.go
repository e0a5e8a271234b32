package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(ctx context.Context, redisURL string) (*RedisClient, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// AddActiveUser adds a user to the active users set.
func (r *RedisClient) AddActiveUser(ctx context.Context, username string) error {
	return r.client.SAdd(ctx, "active_users", username).Err()
}

// RemoveActiveUser removes a user from the active users set.
func (r *RedisClient) RemoveActiveUser(ctx context.Context, username string) error {
	return r.client.SRem(ctx, "active_users", username).Err()
}

// GetActiveUsers retrieves all active users.
func (r *RedisClient) GetActiveUsers(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, "active_users").Result()
}

// CacheUsername stores a userID -> username mapping with a TTL. Typing events
// arrive per keystroke, so user lookups must not hit the store every time.
func (r *RedisClient) CacheUsername(ctx context.Context, userID int64, username string, ttl time.Duration) error {
	return r.client.Set(ctx, usernameKey(userID), username, ttl).Err()
}

// CachedUsername returns the cached username for a userID, if present.
func (r *RedisClient) CachedUsername(ctx context.Context, userID int64) (string, bool, error) {
	val, err := r.client.Get(ctx, usernameKey(userID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// FlushAll clears the entire database. Test helper.
func (r *RedisClient) FlushAll(ctx context.Context) error {
	return r.client.FlushAll(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func usernameKey(userID int64) string {
	return fmt.Sprintf("user:%d:username", userID)
}
