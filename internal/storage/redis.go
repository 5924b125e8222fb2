package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const latestVitalsKey = "monitor:vitals:latest"

// LatestVitals is the most recent live estimate, cached for dashboards
// that poll instead of holding a WebSocket open.
type LatestVitals struct {
	HeartRate      int       `json:"heart_rate"`
	HeartRateValid bool      `json:"heart_rate_valid"`
	SpO2           int       `json:"spo2"`
	SpO2Valid      bool      `json:"spo2_valid"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// VitalsCache keeps the latest vitals in Redis with a short TTL so a
// silent monitor reads as stale rather than healthy.
type VitalsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVitalsCache wraps an existing Redis client.
func NewVitalsCache(client *redis.Client, ttl time.Duration) *VitalsCache {
	return &VitalsCache{client: client, ttl: ttl}
}

// SetLatest overwrites the cached vitals.
func (c *VitalsCache) SetLatest(ctx context.Context, v *LatestVitals) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal vitals: %w", err)
	}
	return c.client.Set(ctx, latestVitalsKey, data, c.ttl).Err()
}

// Latest returns the cached vitals, or an error if none are cached or
// the entry expired.
func (c *VitalsCache) Latest(ctx context.Context) (*LatestVitals, error) {
	data, err := c.client.Get(ctx, latestVitalsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("no vitals cached")
		}
		return nil, fmt.Errorf("failed to get vitals: %w", err)
	}

	var v LatestVitals
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vitals: %w", err)
	}

	return &v, nil
}
