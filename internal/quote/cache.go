package quote

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/cafe-pricing/internal/resilience"
)

// Cache stores evaluated quotes in Redis as JSON.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	breaker *resilience.Breaker
}

// NewCache constructs a cache helper. A nil client or non-positive TTL disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "quote:"}
}

// WithBreaker guards Redis calls with b. While it is open, Get and Set return
// resilience.ErrOpenCircuit without touching Redis.
func (c *Cache) WithBreaker(b *resilience.Breaker) *Cache {
	if c != nil {
		c.breaker = b
	}
	return c
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get loads a cached result. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, key string) (*Result, bool, error) {
	if !c.enabled() || key == "" {
		return nil, false, nil
	}
	var data []byte
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.client.Get(ctx, c.prefix+key).Bytes()
		return err
	}, isMiss)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

// Set serialises res and stores it with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, res *Result) error {
	if !c.enabled() || key == "" || res == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
	}, nil)
}

func isMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
