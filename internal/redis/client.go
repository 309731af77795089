package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrLockBusy  = errors.New("order is being modified by another request")
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

type Client struct {
	rdb          *redis.Client
	retryBackoff time.Duration
}

func Initialize(redisURL string) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewFromClient(rdb), nil
}

func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb, retryBackoff: 50 * time.Millisecond}
}

func orderLockKey(orderID uint) string {
	return fmt.Sprintf("lock:order:%d", orderID)
}

func orderSummaryKey(orderID uint) string {
	return fmt.Sprintf("order_summary:%d", orderID)
}

// WithOrderLock runs fn while holding the order's lock. Waiting stops after
// ttl or when ctx ends, whichever comes first.
func (c *Client) WithOrderLock(ctx context.Context, orderID uint, ttl time.Duration, fn func(context.Context) error) error {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	key := orderLockKey(orderID)
	token := ulid.Make().String()
	deadline := time.Now().Add(ttl)

	for {
		ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire order lock: %w", err)
		}
		if ok {
			defer c.release(key, token)
			return fn(ctx)
		}
		if time.Now().After(deadline) {
			return ErrLockBusy
		}
		timer := time.NewTimer(c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) release(key, token string) {
	ctx := context.Background()
	if err := c.rdb.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = c.rdb.Del(ctx, key).Err()
		}
	}
}

// Order summary caching
func (c *Client) SetOrderSummary(ctx context.Context, orderID uint, summary interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal order summary: %w", err)
	}

	return c.rdb.Set(ctx, orderSummaryKey(orderID), jsonData, ttl).Err()
}

func (c *Client) GetOrderSummary(ctx context.Context, orderID uint, dest interface{}) error {
	val, err := c.rdb.Get(ctx, orderSummaryKey(orderID)).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get order summary: %w", err)
	}

	return json.Unmarshal([]byte(val), dest)
}

func (c *Client) InvalidateOrderSummary(ctx context.Context, orderID uint) error {
	return c.rdb.Del(ctx, orderSummaryKey(orderID)).Err()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
