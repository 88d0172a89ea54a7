package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/campusswap/api/internal/domain"
)

// Client wraps a redigo pool. All operations borrow a connection per call;
// transport errors propagate to the caller, there are no internal retries.
type Client struct {
	pool *redis.Pool
}

// New builds a pooled client. The connect timeout is short so a dead cache
// fails requests fast instead of queueing them.
func New(addr, password string) *Client {
	opts := []redis.DialOption{
		redis.DialConnectTimeout(100 * time.Millisecond),
		redis.DialReadTimeout(2 * time.Second),
		redis.DialWriteTimeout(2 * time.Second),
	}
	if password != "" {
		opts = append(opts, redis.DialPassword(password))
	}
	return &Client{
		pool: &redis.Pool{
			MaxIdle:     10,
			MaxActive:   100,
			IdleTimeout: 5 * time.Minute,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", addr, opts...)
			},
			TestOnBorrow: func(c redis.Conn, t time.Time) error {
				if time.Since(t) < time.Minute {
					return nil
				}
				_, err := c.Do("PING")
				return err
			},
		},
	}
}

// NewFromPool wraps an existing pool. Used by tests.
func NewFromPool(pool *redis.Pool) *Client {
	return &Client{pool: pool}
}

// Ping verifies connectivity. Called once at startup; failure is fatal there.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (c *Client) Close() error {
	return c.pool.Close()
}

// Key lays out a cache key as {site}:{purpose}:{identity}.
func Key(site domain.Site, purpose domain.Purpose, identity string) string {
	return fmt.Sprintf("%s:%s:%s", site, purpose, identity)
}

// KeyPrefix is Key without the identity, for scripts that append one server-side.
func KeyPrefix(site domain.Site, purpose domain.Purpose) string {
	return fmt.Sprintf("%s:%s:", site, purpose)
}
