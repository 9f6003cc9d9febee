package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKey    = "board:%s:presence:%d"  // String: heartbeat of one user on one board
	presenceSetKey = "board:%s:online_users" // Set: users seen on the board
	presenceTTL    = 60 * time.Second
	presenceSetTTL = 24 * time.Hour
)

// PresenceCache tracks which collaborators have a board open.
type PresenceCache struct {
	client *redis.Client
}

// NewPresenceCache 创建在线状态缓存
func NewPresenceCache(client *redis.Client) *PresenceCache {
	return &PresenceCache{client: client}
}

// Touch records a heartbeat for userID on workspaceID.
func (c *PresenceCache) Touch(ctx context.Context, workspaceID string, userID int64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	setKey := fmt.Sprintf(presenceSetKey, workspaceID)
	pipe := c.client.Pipeline()
	pipe.Set(ctx, PresenceKey(workspaceID, userID), time.Now().UnixMilli(), presenceTTL)
	pipe.SAdd(ctx, setKey, userID)
	pipe.Expire(ctx, setKey, presenceSetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Remove forgets userID on workspaceID.
func (c *PresenceCache) Remove(ctx context.Context, workspaceID string, userID int64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, PresenceKey(workspaceID, userID))
	pipe.SRem(ctx, fmt.Sprintf(presenceSetKey, workspaceID), userID)
	_, err := pipe.Exec(ctx)
	return err
}

// Online returns the users whose heartbeat has not expired. Expired users
// are pruned from the set as a side effect.
func (c *PresenceCache) Online(ctx context.Context, workspaceID string) ([]int64, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	setKey := fmt.Sprintf(presenceSetKey, workspaceID)
	members, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, err
	}

	online := make([]int64, 0, len(members))
	expired := make([]interface{}, 0)
	for _, m := range members {
		userID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		n, err := c.client.Exists(ctx, PresenceKey(workspaceID, userID)).Result()
		if err != nil {
			continue
		}
		if n > 0 {
			online = append(online, userID)
		} else {
			expired = append(expired, m)
		}
	}

	if len(expired) > 0 {
		c.client.SRem(ctx, setKey, expired...)
	}
	return online, nil
}

// PresenceKey is the heartbeat key of one user on one board.
func PresenceKey(workspaceID string, userID int64) string {
	return fmt.Sprintf(presenceKey, workspaceID, userID)
}
