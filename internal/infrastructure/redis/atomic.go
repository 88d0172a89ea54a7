package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Server-side scripts keep each multi-step primitive atomic without
// client-side locking. Script hashes are negotiated per connection by redigo.

// incrementWithCap: INCR, keep the result while it is within the cap and
// stamp the TTL on first use; undo the INCR once the cap is exceeded so the
// counter never drifts past max+1. A zero TTL leaves the key persistent for
// callers that stamp expiry at finalize time.
var incrementWithCap = redis.NewScript(1, `
local attempts = redis.call("INCR", KEYS[1])
if attempts <= tonumber(ARGV[2]) then
    if tonumber(ARGV[1]) > 0 then
        redis.call("EXPIRE", KEYS[1], tonumber(ARGV[1]))
    end
else
    redis.call("DECR", KEYS[1])
    attempts = attempts - 1
end
return attempts
`)

// decrementFloorZero: DECR and drop the key once it reaches zero, so an
// absent key and an exhausted counter read the same.
var decrementFloorZero = redis.NewScript(1, `
local remaining = redis.call("DECR", KEYS[1])
if remaining <= 0 then
    redis.call("DEL", KEYS[1])
    return 0
end
return remaining
`)

// decrementClampZero: DECR but pin at zero. Display gauges use this so a
// replayed delete cannot show a negative count.
var decrementClampZero = redis.NewScript(1, `
local remaining = redis.call("DECR", KEYS[1])
if remaining < 0 then
    redis.call("SET", KEYS[1], 0)
    return 0
end
return remaining
`)

// pushBoundedList: store the payload under the primary key, push the id onto
// the owner's list, refresh the list TTL, and evict the oldest entry (id and
// payload both) once the list exceeds its bound.
var pushBoundedList = redis.NewScript(2, `
redis.call("SETEX", KEYS[1], tonumber(ARGV[3]), ARGV[2])
local length = redis.call("LPUSH", KEYS[2], ARGV[1])
redis.call("EXPIRE", KEYS[2], tonumber(ARGV[3]))
if length > tonumber(ARGV[4]) then
    local removed_id = redis.call("RPOP", KEYS[2])
    redis.call("DEL", ARGV[5] .. removed_id)
end
`)

// IncrementWithCap bumps a capped counter and returns its value after the
// operation. ttlIfNew <= 0 means no expiry.
func (c *Client) IncrementWithCap(ctx context.Context, key string, ttlIfNew time.Duration, max int) (int64, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	defer conn.Close()
	n, err := redis.Int64(incrementWithCap.Do(conn, key, int(ttlIfNew.Seconds()), max))
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return n, nil
}

// Increment bumps an unbounded counter.
func (c *Client) Increment(ctx context.Context, key string) (int64, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	defer conn.Close()
	n, err := redis.Int64(conn.Do("INCR", key))
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

// DecrementFloorZero lowers a counter, deleting it at zero.
func (c *Client) DecrementFloorZero(ctx context.Context, key string) (int64, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	defer conn.Close()
	n, err := redis.Int64(decrementFloorZero.Do(conn, key))
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	return n, nil
}

// DecrementClampZero lowers a gauge, clamping at zero.
func (c *Client) DecrementClampZero(ctx context.Context, key string) (int64, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	defer conn.Close()
	n, err := redis.Int64(decrementClampZero.Do(conn, key))
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", key, err)
	}
	return n, nil
}

// PushBoundedList registers payload under primaryKey with ttl and appends id
// to listKey, evicting the oldest registration past maxLen. prunePrefix is
// the key prefix the evicted id is deleted under.
func (c *Client) PushBoundedList(ctx context.Context, primaryKey, listKey, id, payload string, ttl time.Duration, maxLen int, prunePrefix string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("push %s: %w", listKey, err)
	}
	defer conn.Close()
	if _, err := pushBoundedList.Do(conn, primaryKey, listKey, id, payload, int(ttl.Seconds()), maxLen, prunePrefix); err != nil {
		return fmt.Errorf("push %s: %w", listKey, err)
	}
	return nil
}

// SetIfAbsentWithTTL creates the key only if it does not exist. Returns true
// iff this call created it. Used as a single-shot gate.
func (c *Client) SetIfAbsentWithTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	defer conn.Close()
	reply, err := redis.String(conn.Do("SET", key, "1", "NX", "PX", ttl.Milliseconds()))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return reply == "OK", nil
}

// Get returns the string value at key, or domain.ErrNotFound via redis.ErrNil
// translated to ("", false).
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	defer conn.Close()
	v, err := redis.String(conn.Do("GET", key))
	if err == redis.ErrNil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

// GetInt returns the integer value at key, zero when absent.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	defer conn.Close()
	n, err := redis.Int64(conn.Do("GET", key))
	if err == redis.ErrNil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	return n, nil
}

// SetWithTTL stores value under key with an expiry.
func (c *Client) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	defer conn.Close()
	if _, err := conn.Do("SETEX", key, int(ttl.Seconds()), value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes a single key.
func (c *Client) Delete(ctx context.Context, key string) error {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	defer conn.Close()
	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// DeleteBatch removes keys in one pipelined round trip.
func (c *Client) DeleteBatch(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("del batch: %w", err)
	}
	defer conn.Close()
	for _, k := range keys {
		if err := conn.Send("DEL", k); err != nil {
			return fmt.Errorf("del batch: %w", err)
		}
	}
	if err := conn.Flush(); err != nil {
		return fmt.Errorf("del batch: %w", err)
	}
	for range keys {
		if _, err := conn.Receive(); err != nil {
			return fmt.Errorf("del batch: %w", err)
		}
	}
	return nil
}

// ListRange returns the whole list at key.
func (c *Client) ListRange(ctx context.Context, key string) ([]string, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	defer conn.Close()
	vals, err := redis.Strings(conn.Do("LRANGE", key, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	return vals, nil
}
