package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKey        = "board:%s:snapshot" // String: raw snapshot JSON
	defaultSnapshotTTL = 24 * time.Hour
)

// SnapshotCache keeps the latest board snapshot of each workspace in Redis.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache 创建快照缓存
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot and whether there was one.
func (c *SnapshotCache) Get(ctx context.Context, workspaceID string) ([]byte, bool, error) {
	if c.client == nil {
		return nil, false, fmt.Errorf("Redis client not initialized")
	}

	data, err := c.client.Get(ctx, SnapshotKey(workspaceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores snapshot and refreshes its TTL.
func (c *SnapshotCache) Set(ctx context.Context, workspaceID string, snapshot []byte) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Set(ctx, SnapshotKey(workspaceID), snapshot, c.ttl).Err()
}

// Delete drops the cached snapshot.
func (c *SnapshotCache) Delete(ctx context.Context, workspaceID string) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, SnapshotKey(workspaceID)).Err()
}

// SnapshotKey is the Redis key of a workspace snapshot.
func SnapshotKey(workspaceID string) string {
	return fmt.Sprintf(snapshotKey, workspaceID)
}
