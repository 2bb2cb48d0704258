// Package redis mirrors live usage state into Redis so the UI process and
// external dashboards can read counters and alarms without IPC into the
// core.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/novik133/NovaBar-sub002/internal/core/domain"
)

const (
	usageChannel = "novabar:usage"
	alarmChannel = "novabar:alarms"
)

// Client wraps the Redis operations for the usage mirror.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration. An empty URL disables the
// mirror.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
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

func usageKey(connectionID string) string {
	return fmt.Sprintf("novabar:usage:%s", connectionID)
}

// MirrorUsage writes the latest counters for a connection into a hash and
// publishes the full sample on the usage channel.
func (c *Client) MirrorUsage(ctx context.Context, sample domain.UsageSample) error {
	key := usageKey(sample.Counters.ConnectionID)
	fields := map[string]any{
		"bytes_sent":     strconv.FormatUint(sample.Counters.BytesSent, 10),
		"bytes_received": strconv.FormatUint(sample.Counters.BytesReceived, 10),
		"total":          strconv.FormatUint(sample.TotalUsage, 10),
		"percent":        strconv.FormatFloat(sample.UsagePercent, 'f', 2, 64),
		"rate_bps":       strconv.FormatFloat(sample.BytesPerSec, 'f', 2, 64),
		"period_start":   sample.Counters.PeriodStart.Format(time.RFC3339),
		"sampled_at":     sample.SampledAt.Format(time.RFC3339),
	}
	if err := c.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to mirror usage for %s: %w", sample.Counters.ConnectionID, err)
	}

	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal usage sample: %w", err)
	}
	if err := c.rdb.Publish(ctx, usageChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish usage sample: %w", err)
	}
	return nil
}

// alarm is the published payload for threshold and limit alarms.
type alarm struct {
	ConnectionID string  `json:"connection_id"`
	Kind         string  `json:"kind"` // "threshold" or "limit"
	Percentage   float64 `json:"percentage,omitempty"`
	At           string  `json:"at"`
}

// PublishAlarm announces a threshold crossing or limit breach.
func (c *Client) PublishAlarm(ctx context.Context, connectionID, kind string, percentage float64) error {
	payload, err := json.Marshal(alarm{
		ConnectionID: connectionID,
		Kind:         kind,
		Percentage:   percentage,
		At:           time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alarm: %w", err)
	}
	if err := c.rdb.Publish(ctx, alarmChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alarm: %w", err)
	}
	return nil
}
