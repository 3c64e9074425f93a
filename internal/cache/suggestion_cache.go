package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"github.com/jordan1monts/COP3060FINAL/internal/model"
)

// SuggestionListCache keeps a user's ordered suggestion list in Redis for a
// short TTL. A dirty marker set on every mutation blocks re-caching while the
// write path and the read path race.
type SuggestionListCache struct {
	client         *redisv9.Client
	listTTL        time.Duration
	dirtyMarkerTTL time.Duration
}

func NewSuggestionListCache(client *redisv9.Client, listTTL, dirtyMarkerTTL time.Duration) *SuggestionListCache {
	if listTTL <= 0 {
		listTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &SuggestionListCache{
		client:         client,
		listTTL:        listTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *SuggestionListCache) GetList(ctx context.Context, userID uint) ([]model.Suggestion, bool, error) {
	raw, err := c.client.Get(ctx, c.listKey(userID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get suggestion list failed: %w", err)
	}

	var suggestions []model.Suggestion
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached suggestion list failed: %w", err)
	}
	return suggestions, true, nil
}

func (c *SuggestionListCache) SetList(ctx context.Context, userID uint, suggestions []model.Suggestion) error {
	payload, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestion list failed: %w", err)
	}
	if err := c.client.Set(ctx, c.listKey(userID), payload, c.listTTL).Err(); err != nil {
		return fmt.Errorf("redis set suggestion list failed: %w", err)
	}
	return nil
}

func (c *SuggestionListCache) DeleteList(ctx context.Context, userID uint) error {
	if err := c.client.Del(ctx, c.listKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete suggestion list failed: %w", err)
	}
	return nil
}

func (c *SuggestionListCache) MarkDirty(ctx context.Context, userID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(userID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *SuggestionListCache) IsDirty(ctx context.Context, userID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *SuggestionListCache) listKey(userID uint) string {
	return fmt.Sprintf("suggestions:list:%d", userID)
}

func (c *SuggestionListCache) dirtyKey(userID uint) string {
	return fmt.Sprintf("suggestions:list:dirty:%d", userID)
}
