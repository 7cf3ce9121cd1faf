package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{account_id}:analysis - per-window analysis sends

type RateLimitConfig struct {
	SendLimit  int
	SendWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		SendLimit:  10,
		SendWindow: time.Minute,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	if config.SendLimit <= 0 || config.SendWindow <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{client: client, config: config}
}

// fixed-window counter; INCR and EXPIRE run atomically in one script
var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		local n = redis.call('INCR', key)
		if n == 1 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - n, ttl}
	end
	return {0, 0, ttl}
`)

func sendKey(accountID string) string {
	return fmt.Sprintf("ratelimit:%s:analysis", accountID)
}

// AllowSend checks and consumes one analysis send for the account.
func (r *RateLimiter) AllowSend(ctx context.Context, accountID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, sendKey(accountID), r.config.SendLimit, r.config.SendWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	seconds := int(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	vals, err := limitScript.Run(ctx, r.client, []string{key}, limit, seconds).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(vals) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	return &RateLimitResult{
		Allowed:   vals[0] == 1,
		Remaining: int(vals[1]),
		ResetIn:   time.Duration(vals[2]) * time.Second,
		Limit:     limit,
	}, nil
}

// ResetSend clears the account's send counter (admin operation).
func (r *RateLimiter) ResetSend(ctx context.Context, accountID string) error {
	return r.client.Del(ctx, sendKey(accountID)).Err()
}
