package governor

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Bucket is a Redis-backed token bucket keyed per account so that every
// process driving the same account shares one budget. The refill math runs
// in a Lua script, so check-and-decrement is atomic.
type Bucket struct {
	redis      *redis.Client
	capacity   int64
	refillRate float64 // tokens per second
	script     *redis.Script
}

// NewBucket builds a bucket allowing perMinute operations per account.
// A nil client disables the bucket (callers keep local pacing only).
func NewBucket(rdb *redis.Client, perMinute int) *Bucket {
	if rdb == nil || perMinute <= 0 {
		return nil
	}
	return &Bucket{
		redis:      rdb,
		capacity:   int64(perMinute),
		refillRate: float64(perMinute) / 60.0,
		script:     redis.NewScript(luaTokenBucketScript),
	}
}

const luaTokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = capacity
local last_refill = now

local data = redis.call("HMGET", key, "tokens", "last_refill")
if data[1] ~= false and data[1] ~= nil then
  tokens = tonumber(data[1])
end
if data[2] ~= false and data[2] ~= nil then
  last_refill = tonumber(data[2])
end

local delta = now - last_refill
if delta < 0 then
  delta = 0
end

tokens = math.min(capacity, tokens + delta * refill_rate)
last_refill = now

local allowed = 0
local retry_after = 0

if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry_after = (1 - tokens) / refill_rate
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 3600)

return { allowed, retry_after }
`

// Allow consumes one token for the account, or reports how long to wait.
func (b *Bucket) Allow(ctx context.Context, accountID int) (bool, time.Duration, error) {
	if b == nil || b.redis == nil {
		return true, 0, nil
	}
	nowSec := float64(time.Now().UnixNano()) / 1e9
	key := fmt.Sprintf("governor:budget:%d", accountID)
	res, err := b.script.Run(ctx, b.redis, []string{key}, b.capacity, b.refillRate, nowSec).Result()
	if err != nil {
		return true, 0, fmt.Errorf("op=governor.bucket: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return true, 0, nil
	}
	allowed := asInt64(vals[0]) == 1
	retryAfter := time.Duration(asFloat64(vals[1]) * float64(time.Second))
	if retryAfter < 10*time.Millisecond {
		retryAfter = 10 * time.Millisecond
	}
	return allowed, retryAfter, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func asFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return 0
	}
}
