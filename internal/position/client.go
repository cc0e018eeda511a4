// Package position implements an optional Redis-backed cache for the last
// observed position per subscription (spec.md section 3, "Position"). It
// lets a Client resume with a previously seen position across process
// restarts -- an explicit, opt-in extension beyond spec.md's in-memory-only
// position tracking; SPEC_FULL.md's non-goal of message persistence still
// holds since only the opaque position token is cached here, never the
// messages themselves.
package position

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps a go-redis Client and stores subscription positions keyed by
// subscription id.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New creates a new Client, pings it to verify connectivity, and returns the
// wrapper. It returns an error if the connection cannot be established.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}

	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	rdb := redis.NewClient(opts)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("position: ping: %w", err)
	}

	return &Client{rdb: rdb, prefix: "rtmclient:position:"}, nil
}

// Store persists the most recently observed position for subscriptionID.
// Entries expire after ttl to avoid resuming from an arbitrarily stale
// position after a long outage; a zero ttl means no expiry.
func (c *Client) Store(ctx context.Context, subscriptionID, pos string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.key(subscriptionID), pos, ttl).Err(); err != nil {
		return fmt.Errorf("position: store %s: %w", subscriptionID, err)
	}
	return nil
}

// Load returns the last persisted position for subscriptionID, or "" with
// ok=false if none is stored.
func (c *Client) Load(ctx context.Context, subscriptionID string) (pos string, ok bool, err error) {
	v, err := c.rdb.Get(ctx, c.key(subscriptionID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("position: load %s: %w", subscriptionID, err)
	}
	return v, true, nil
}

// Clear removes the stored position for subscriptionID, mirroring the
// in-memory clear-on-out_of_sync behavior (spec.md section 4.2).
func (c *Client) Clear(ctx context.Context, subscriptionID string) error {
	if err := c.rdb.Del(ctx, c.key(subscriptionID)).Err(); err != nil {
		return fmt.Errorf("position: clear %s: %w", subscriptionID, err)
	}
	return nil
}

func (c *Client) key(subscriptionID string) string { return c.prefix + subscriptionID }

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
