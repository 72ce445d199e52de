package health

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisChecker probes a Redis client with PING.
type RedisChecker struct {
	Client *redis.Client
}

// PingRedis issues a PING bounded by timeout.
func (c RedisChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Client == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}
