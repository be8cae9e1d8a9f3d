package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "arena:rl:"

// hitScript increments a counter and gives it the window TTL if it has
// none, returning the count and the remaining TTL in milliseconds. Scripts
// run atomically, so no counter is left without a TTL.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	ttl = tonumber(ARGV[1])
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return {n, ttl}
`)

// RedisLimiter keeps fixed-window counters in redis so that every server
// instance shares them. The key's TTL is set only when the window opens.
type RedisLimiter struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisLimiter creates a limiter on top of an existing redis client.
func NewRedisLimiter(rdb redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: redisKeyPrefix}
}

// DialRedis connects to addr and verifies the connection with PING.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Hit implements Limiter.
func (r *RedisLimiter) Hit(ctx context.Context, key string, win time.Duration, limit int) error {
	k := r.prefix + key

	res, err := hitScript.Run(ctx, r.rdb, []string{k}, max(1, win.Milliseconds())).Int64Slice()
	if err != nil {
		return fmt.Errorf("hit %s: %w", k, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("hit %s: unexpected reply %v", k, res)
	}

	if n, ttl := res[0], time.Duration(res[1])*time.Millisecond; n > int64(limit) {
		return &ExceededError{Key: key, RetryAfter: ttl}
	}
	return nil
}
