package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a sliding window limit shared across processes.
// Used so a CLI run and the scheduler never exceed one provider quota together.
// ⭐ SSOT: cross-process rate limits live here
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // provider name, e.g. "eodhd"
	Limit  int           // maximum requests allowed
	Window time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client: client,
		prefix: prefix,
	}
}

var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		redis.call('ZADD', key, now, now)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	else
		return {0, 0}
	end
`)

// Allow checks if a request is allowed under the rate limit
// Returns (allowed, remaining, error)
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := r.Key(cfg)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))

	return allowed, remaining, nil
}

// Wait blocks until a request is allowed or context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Key returns the redis key for a limit
func (r *RateLimiter) Key(cfg RateLimitConfig) string {
	return fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
}

// Provider quotas. Conservative against the published plans.
var (
	// EODHD: 1000 requests/minute on paid plans
	EODHDRateLimit = RateLimitConfig{
		Key:    "eodhd",
		Limit:  600,
		Window: time.Minute,
	}

	// Yahoo quote endpoint: unofficial, keep it slow
	YahooRateLimit = RateLimitConfig{
		Key:    "yahoo",
		Limit:  4,
		Window: time.Second,
	}

	// Wikipedia constituent page
	UniverseRateLimit = RateLimitConfig{
		Key:    "universe",
		Limit:  1,
		Window: time.Second,
	}
)

// RateLimitFor returns the quota for a provider name
func RateLimitFor(provider string) RateLimitConfig {
	switch provider {
	case "yahoo":
		return YahooRateLimit
	case "universe":
		return UniverseRateLimit
	default:
		return EODHDRateLimit
	}
}
