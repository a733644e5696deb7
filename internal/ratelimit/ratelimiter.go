package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Window is the sliding window every limit is expressed over
const Window = time.Minute

// Limiter is used to enforce per-key request limits.
type Limiter interface {
	// AllowWithDetails consumes one request for key. remaining is -1 and
	// resetAt is zero when the limit is unlimited (limit <= 0).
	AllowWithDetails(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt time.Time, err error)
}

// NoopLimiter allows all requests.
type NoopLimiter struct{}

func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

func (l *NoopLimiter) Allow(ctx context.Context, key string) bool {
	return true
}

func (l *NoopLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	return true, -1, time.Time{}, nil
}

// RateLimiter implements distributed sliding-window rate limiting using Redis
// sorted sets. Rejected requests are not counted.
type RateLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// slidingWindowScript trims the window, then admits the request if there is room.
// It returns {allowed, count after the call, oldest score in the window}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local count = redis.call('ZCARD', key)
	local allowed = 0
	if count < limit then
		redis.call('ZADD', key, now, member)
		count = count + 1
		allowed = 1
	end
	redis.call('PEXPIRE', key, window * 2)

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local oldestScore = now
	if oldest[2] then
		oldestScore = tonumber(oldest[2])
	end
	return {allowed, count, oldestScore}
`)

func windowKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Allow checks if a request should be allowed for the given key
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int) (bool, error) {
	allowed, _, _, err := rl.AllowWithDetails(ctx, key, limit)
	return allowed, err
}

// AllowWithDetails consumes one request and reports the remaining budget and
// when the oldest request leaves the window
func (rl *RateLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		// No limit configured
		return true, -1, time.Time{}, nil
	}

	now := rl.now()
	result, err := slidingWindowScript.Run(ctx, rl.client,
		[]string{windowKey(key)},
		now.UnixMilli(),
		Window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := result[0] == 1
	remaining := limit - int(result[1])
	if remaining < 0 {
		remaining = 0
	}
	resetAt := time.UnixMilli(result[2]).Add(Window)

	return allowed, remaining, resetAt, nil
}

// GetCurrentUsage returns the current request count in the window
func (rl *RateLimiter) GetCurrentUsage(ctx context.Context, key string) (int64, error) {
	redisKey := windowKey(key)
	windowStart := rl.now().Add(-Window)

	if err := rl.client.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}

	return count, nil
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(ctx context.Context, key string) error {
	return rl.client.Del(ctx, windowKey(key)).Err()
}

// TokenBucketLimiter implements the token bucket algorithm: the bucket holds
// up to limit tokens and refills at limit tokens per Window.
type TokenBucketLimiter struct {
	client *redis.Client
	now    func() time.Time
}

// NewTokenBucketLimiter creates a new token bucket rate limiter
func NewTokenBucketLimiter(client *redis.Client) *TokenBucketLimiter {
	return &TokenBucketLimiter{client: client, now: time.Now}
}

// tokenBucketScript refills the bucket, takes one token if available and
// returns {allowed, whole tokens left, milliseconds until the next token}.
var tokenBucketScript = redis.NewScript(`
	local tokens_key = KEYS[1]
	local last_refill_key = KEYS[2]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local window = tonumber(ARGV[4])

	local tokens = tonumber(redis.call('GET', tokens_key)) or burst
	local last_refill = tonumber(redis.call('GET', last_refill_key)) or now

	local elapsed = math.max(0, now - last_refill)
	tokens = math.min(burst, tokens + (elapsed * rate) / window)

	local allowed = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	end

	redis.call('SET', tokens_key, tostring(tokens), 'PX', window * 2)
	redis.call('SET', last_refill_key, now, 'PX', window * 2)

	local wait = 0
	if tokens < 1 then
		wait = math.ceil((1 - tokens) * window / rate)
	end
	return {allowed, math.floor(tokens), wait}
`)

func bucketKeys(key string) []string {
	base := fmt.Sprintf("tokenbucket:%s", key)
	return []string{base + ":tokens", base + ":last"}
}

// AllowWithDetails takes one token; resetAt is when the next token becomes available
func (tbl *TokenBucketLimiter) AllowWithDetails(ctx context.Context, key string, limit int) (bool, int, time.Time, error) {
	if limit <= 0 {
		return true, -1, time.Time{}, nil
	}

	now := tbl.now()
	result, err := tokenBucketScript.Run(ctx, tbl.client,
		bucketKeys(key),
		limit,
		limit,
		now.UnixMilli(),
		Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, fmt.Errorf("token bucket check failed: %w", err)
	}

	return result[0] == 1, int(result[1]), now.Add(time.Duration(result[2]) * time.Millisecond), nil
}

// Reset resets the token bucket for a key
func (tbl *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	return tbl.client.Del(ctx, bucketKeys(key)...).Err()
}

// New returns the limiter for an algorithm name: "sliding_window" (default) or "token_bucket"
func New(algorithm string, client *redis.Client) (Limiter, error) {
	switch algorithm {
	case "", "sliding_window":
		return NewRateLimiter(client), nil
	case "token_bucket":
		return NewTokenBucketLimiter(client), nil
	default:
		return nil, fmt.Errorf("unknown rate limit algorithm %q", algorithm)
	}
}
