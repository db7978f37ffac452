package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"DemoCrate/db"
	"DemoCrate/model"

	"github.com/go-redis/redis/v8"
)

const (
	boardKey       = "board:%d" // String: 看板快照 JSON（orgID）
	boardTTL       = 5 * time.Minute
	presenceKey    = "board:%d:presence:%d" // String: 员工在线心跳 key (orgID:staffID)
	presenceSetKey = "board:%d:online"      // Set: 在线员工集合
	presenceTTL    = 60 * time.Second       // 心跳过期时间 60秒
)

// BoardCache 看板缓存操作：看板快照 + 在线员工心跳
type BoardCache struct {
	client *redis.Client
}

// NewBoardCache 创建看板缓存
func NewBoardCache() *BoardCache {
	return &BoardCache{client: db.RedisClient}
}

// ========== 看板快照 ==========

// SetBoard 写入厂牌看板快照
func (c *BoardCache) SetBoard(ctx context.Context, orgID int64, tracks []*model.DemoTrack) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal board snapshot: %w", err)
	}

	key := fmt.Sprintf(boardKey, orgID)
	return c.client.Set(ctx, key, data, boardTTL).Err()
}

// GetBoard 读取厂牌看板快照，未命中返回 (nil, nil)
func (c *BoardCache) GetBoard(ctx context.Context, orgID int64) ([]*model.DemoTrack, error) {
	if c.client == nil {
		return nil, fmt.Errorf("Redis client not initialized")
	}

	key := fmt.Sprintf(boardKey, orgID)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var tracks []*model.DemoTrack
	if err := json.Unmarshal([]byte(data), &tracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal board snapshot: %w", err)
	}
	return tracks, nil
}

// InvalidateBoard 使看板快照失效，任何提交成功的流转后调用
func (c *BoardCache) InvalidateBoard(ctx context.Context, orgID int64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return c.client.Del(ctx, fmt.Sprintf(boardKey, orgID)).Err()
}

// ========== 在线状态 ==========

// UpdateStaffPresence 刷新员工在线心跳
func (c *BoardCache) UpdateStaffPresence(ctx context.Context, orgID, staffID int64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf(presenceKey, orgID, staffID), time.Now().Unix(), presenceTTL)
	pipe.SAdd(ctx, fmt.Sprintf(presenceSetKey, orgID), staffID)
	pipe.Expire(ctx, fmt.Sprintf(presenceSetKey, orgID), presenceTTL*2)
	_, err := pipe.Exec(ctx)
	return err
}

// RemoveStaffPresence 移除员工在线状态
func (c *BoardCache) RemoveStaffPresence(ctx context.Context, orgID, staffID int64) error {
	if c.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	pipe := c.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf(presenceKey, orgID, staffID))
	pipe.SRem(ctx, fmt.Sprintf(presenceSetKey, orgID), staffID)
	_, err := pipe.Exec(ctx)
	return err
}

// GetActiveOnlineCount 统计仍有心跳的在线员工数，顺手清掉过期成员
func (c *BoardCache) GetActiveOnlineCount(ctx context.Context, orgID int64) (int64, error) {
	if c.client == nil {
		return 0, fmt.Errorf("Redis client not initialized")
	}

	members, err := c.client.SMembers(ctx, fmt.Sprintf(presenceSetKey, orgID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}

	var active int64
	for _, member := range members {
		var staffID int64
		if _, err := fmt.Sscanf(member, "%d", &staffID); err != nil {
			continue
		}
		exists, err := c.client.Exists(ctx, fmt.Sprintf(presenceKey, orgID, staffID)).Result()
		if err != nil {
			continue
		}
		if exists > 0 {
			active++
		} else {
			c.client.SRem(ctx, fmt.Sprintf(presenceSetKey, orgID), member)
		}
	}
	return active, nil
}
