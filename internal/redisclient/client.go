package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// LoadLedger reads the persisted ledger blob for a device at a site.
// A missing key reads as empty.
func (c *Client) LoadLedger(ctx context.Context, siteKey, deviceID string) ([]byte, error) {
	data, err := c.rdb.Get(ctx, ledgerKey(siteKey, deviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	return data, nil
}

// SaveLedger overwrites the persisted ledger blob for a device at a site.
// Last write wins across concurrent holders of the same key.
func (c *Client) SaveLedger(ctx context.Context, siteKey, deviceID string, data []byte) error {
	if err := c.rdb.Set(ctx, ledgerKey(siteKey, deviceID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// DeleteLedger removes the persisted ledger for a device at a site
func (c *Client) DeleteLedger(ctx context.Context, siteKey, deviceID string) error {
	return c.rdb.Del(ctx, ledgerKey(siteKey, deviceID)).Err()
}

func ledgerKey(siteKey, deviceID string) string {
	return fmt.Sprintf("ledger:%s:%s", siteKey, deviceID)
}
