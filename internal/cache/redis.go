package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rendis/flowgpt/internal/engine"
)

const statusPrefix = "flowgpt:status:"

// Options configures the redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStatusCache stores completed execution statuses in redis.
type RedisStatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatusCache connects to redis and verifies the server answers.
func NewRedisStatusCache(opts Options) (*RedisStatusCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return &RedisStatusCache{client: client, ttl: opts.TTL}, nil
}

func statusKey(executionID int64) string {
	return fmt.Sprintf("%s%d", statusPrefix, executionID)
}

// Get returns the cached status, or ok=false on a miss.
func (c *RedisStatusCache) Get(ctx context.Context, executionID int64) (*engine.Status, bool, error) {
	data, err := c.client.Get(ctx, statusKey(executionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get status %d from redis: %w", executionID, err)
	}

	var st engine.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, false, fmt.Errorf("decode cached status %d: %w", executionID, err)
	}
	return &st, true, nil
}

// Put caches st. Incomplete executions are never cached.
func (c *RedisStatusCache) Put(ctx context.Context, st *engine.Status) error {
	if !st.IsComplete {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status %d: %w", st.ExecutionID, err)
	}
	if err := c.client.Set(ctx, statusKey(st.ExecutionID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set status %d in redis: %w", st.ExecutionID, err)
	}
	return nil
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, executionID int64) error {
	return c.client.Del(ctx, statusKey(executionID)).Err()
}

func (c *RedisStatusCache) Close() error {
	return c.client.Close()
}
