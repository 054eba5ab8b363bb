package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisTimeout = 300 * time.Millisecond

// incrementScript keeps the counter in a hash so the window start survives
// alongside the count. ARGV: ttl ms, sliding flag, now ms.
const incrementScript = `
local c = redis.call("HINCRBY", KEYS[1], "count", 1)
if c == 1 then
  redis.call("HSET", KEYS[1], "start", ARGV[3])
end
redis.call("HSET", KEYS[1], "last", ARGV[3])
if c == 1 or ARGV[2] == "1" then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {c, redis.call("HGET", KEYS[1], "start"), redis.call("PTTL", KEYS[1])}
`

var incrementLua = redis.NewScript(incrementScript)

// RedisTier is the shared primary tier.
type RedisTier struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func NewRedisTier(client redis.UniversalClient, timeout time.Duration) *RedisTier {
	if timeout <= 0 {
		timeout = DefaultRedisTimeout
	}
	return &RedisTier{client: client, timeout: timeout}
}

func (r *RedisTier) Name() string { return "redis" }

func (r *RedisTier) IncrementWithExpiry(ctx context.Context, key string, now time.Time, ttl time.Duration, mode models.WindowMode) (models.WindowCounter, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sliding := "0"
	if mode == models.WindowSliding {
		sliding = "1"
	}

	res, err := incrementLua.Run(ctx, r.client, []string{key}, ttl.Milliseconds(), sliding, now.UnixMilli()).Slice()
	if err != nil {
		return models.WindowCounter{}, unavailable(err)
	}
	if len(res) != 3 {
		return models.WindowCounter{}, fmt.Errorf("%w: unexpected script reply %v", ErrTierUnavailable, res)
	}

	count, ok := res[0].(int64)
	if !ok {
		return models.WindowCounter{}, fmt.Errorf("%w: bad count %T", ErrTierUnavailable, res[0])
	}
	start := now
	if s, ok := res[1].(string); ok {
		if ms, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			start = time.UnixMilli(ms)
		}
	}
	expiresAt := now.Add(ttl)
	if pttl, ok := res[2].(int64); ok && pttl > 0 {
		expiresAt = now.Add(time.Duration(pttl) * time.Millisecond)
	}

	return models.WindowCounter{
		Count:       count,
		WindowStart: start,
		LastAt:      now,
		ExpiresAt:   expiresAt,
	}, nil
}

func (r *RedisTier) Get(ctx context.Context, key string, _ time.Time) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}
	return b, true, nil
}

func (r *RedisTier) GetAndDelete(ctx context.Context, key string, _ time.Time) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	b, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable(err)
	}
	return b, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key string, value []byte, _ time.Time, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrTierUnavailable, err)
}
