package ratelimit

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const keyPrefix = "ratelimit"

// New builds a limiter for a formatted rate such as "120-M". Counters live in Redis
// when a client is given and in process memory otherwise. An empty rate disables
// limiting and returns nil.
func New(rate string, rdb *redis.Client) (*limiter.Limiter, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return nil, nil
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate limit %q: %w", rate, err)
	}
	opts := limiter.StoreOptions{Prefix: keyPrefix}
	var store limiter.Store
	if rdb != nil {
		store, err = limiterredis.NewStoreWithOptions(rdb, opts)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return limiter.New(store, parsed), nil
}
