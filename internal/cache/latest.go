package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LatestPosition is the per-origin snapshot kept in redis for quick
// "where is it now" lookups without touching the readings table.
type LatestPosition struct {
	OriginID    int64   `json:"origin_id"`
	PhoneNumber string  `json:"phone_number"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timestamp   string  `json:"timestamp"`
	Date        string  `json:"date"`
}

// Latest manages the latest-position cache.
type Latest struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLatest returns a redis-backed cache.
func NewLatest(client *redis.Client, ttl time.Duration) *Latest {
	return &Latest{client: client, ttl: ttl}
}

func (c *Latest) key(originID int64) string {
	return fmt.Sprintf("origins:latest:%d", originID)
}

// Save caches the position, replacing any previous snapshot.
func (c *Latest) Save(ctx context.Context, pos LatestPosition) error {
	data, err := json.Marshal(pos)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(pos.OriginID), data, c.ttl).Err()
}

// Get returns the cached position, or nil when nothing is cached.
func (c *Latest) Get(ctx context.Context, originID int64) (*LatestPosition, error) {
	result, err := c.client.Get(ctx, c.key(originID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pos LatestPosition
	if err := json.Unmarshal([]byte(result), &pos); err != nil {
		return nil, err
	}
	return &pos, nil
}
