package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/permitpath/engine/internal/core/domain"
)

// Client wraps Redis for the engine's read-through caches: permit
// snapshots (short TTL in front of the catalog) and baseline rows (stale
// reads are fine, the refresher invalidates wholesale after each pass).
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies connectivity for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func snapshotKey(permitID string) string {
	return fmt.Sprintf("permit_snapshot:%s", permitID)
}

func baselineKey(station string, window domain.BaselineWindow) string {
	return fmt.Sprintf("baseline:%s:%s", station, window)
}

const baselineKeyPattern = "baseline:*"

// GetSnapshot implements catalog.SnapshotCache.
func (c *Client) GetSnapshot(ctx context.Context, permitID string) (*domain.PermitSnapshot, bool, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(permitID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("snapshot cache get failed: %w", err)
	}

	var snap domain.PermitSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("snapshot cache decode failed: %w", err)
	}
	return &snap, true, nil
}

// SetSnapshot implements catalog.SnapshotCache.
func (c *Client) SetSnapshot(ctx context.Context, p domain.PermitSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("snapshot cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, snapshotKey(p.PermitID), data, ttl).Err()
}

// GetBaseline implements baseline.Cache.
func (c *Client) GetBaseline(ctx context.Context, station string, window domain.BaselineWindow) (*domain.StationBaseline, bool, error) {
	data, err := c.rdb.Get(ctx, baselineKey(station, window)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("baseline cache get failed: %w", err)
	}

	var b domain.StationBaseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, false, fmt.Errorf("baseline cache decode failed: %w", err)
	}
	return &b, true, nil
}

// SetBaseline implements baseline.Cache. Baselines refresh on a cadence of
// hours, so an hour of cache staleness is within contract.
func (c *Client) SetBaseline(ctx context.Context, b domain.StationBaseline) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("baseline cache encode failed: %w", err)
	}
	return c.rdb.Set(ctx, baselineKey(b.StationCode, b.Window), data, time.Hour).Err()
}

// InvalidateBaselines drops all cached baseline rows after a refresh pass.
func (c *Client) InvalidateBaselines(ctx context.Context) error {
	iter := c.rdb.Scan(ctx, 0, baselineKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("baseline cache delete failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("baseline cache scan failed: %w", err)
	}
	return nil
}
