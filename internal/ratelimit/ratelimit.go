// Package ratelimit provides a redis-backed token bucket used to throttle
// OTP issuance and login attempts per account.
//
// Buckets live in redis so that limits hold across API replicas. Each call
// to Allow runs one Lua script that refills, takes a token and sets the
// key expiry atomically.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every bucket key.
const KeyPrefix = "amarati:ratelimit:"

// ErrInvalidResult is returned when the script reply cannot be decoded.
var ErrInvalidResult = errors.New("ratelimit: invalid script result")

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

if rate <= 0 or burst <= 0 then
  return {1, 0}
end

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = tokens >= 1
local wait_ms = 0
if allowed then
  tokens = tokens - 1
else
  wait_ms = math.ceil((1 - tokens) * 1000.0 / rate)
end

redis.call("HSET", key, "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms}
`

// Limiter is a keyed token bucket. Every key gets its own bucket with the
// same rate and burst.
type Limiter struct {
	rdb    redis.Scripter
	name   string
	rate   float64
	burst  float64
	script *redis.Script
	now    func() time.Time
}

// New creates a limiter named name refilling perMinute tokens per minute
// up to burst. A non-positive rate or burst disables limiting.
func New(rdb redis.Scripter, name string, perMinute, burst int) *Limiter {
	return &Limiter{
		rdb:    rdb,
		name:   name,
		rate:   float64(perMinute) / 60.0,
		burst:  float64(burst),
		script: redis.NewScript(tokenBucketLua),
		now:    time.Now,
	}
}

// Allow takes one token from the bucket for key and reports whether the
// call is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, _, err := l.Reserve(ctx, key)
	return allowed, err
}

// Reserve is Allow that also returns how long a denied caller should wait
// before the next token is available.
func (l *Limiter) Reserve(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true, 0, nil
	}

	res, err := l.script.Run(ctx, l.rdb, []string{l.key(key)},
		l.rate, l.burst, l.now().UnixMilli()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval %s: %w", l.name, err)
	}

	values, ok := res.([]any)
	if !ok || len(values) < 2 {
		return false, 0, ErrInvalidResult
	}

	allowed := toInt64(values[0]) == 1
	wait := time.Duration(toInt64(values[1])) * time.Millisecond
	return allowed, wait, nil
}

func (l *Limiter) key(k string) string {
	return KeyPrefix + l.name + ":" + k
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if parsed, err := strconv.ParseInt(t, 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}
