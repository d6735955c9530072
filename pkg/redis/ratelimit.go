package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter implements sliding window rate limiting using Redis
// Redis가 비활성이면 프로세스 로컬 토큰 버킷으로 대체
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string

	mu        sync.Mutex
	local     map[string]*localBucket
	maxLocal  int
	lastSweep time.Time
	now       func() time.Time
}

// localBucket 클라이언트별 토큰 버킷과 마지막 사용 시각
type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// DefaultMaxLocalBuckets 로컬 모드에서 유지하는 클라이언트 버킷 상한
const DefaultMaxLocalBuckets = 10000

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Key    string        // Unique identifier (e.g., "api:10.0.0.1")
	Limit  int           // Maximum requests allowed
	Window time.Duration // Time window
}

// ForClient scopes the limit to one caller
func (c RateLimitConfig) ForClient(id string) RateLimitConfig {
	c.Key = fmt.Sprintf("%s:%s", c.Key, id)
	return c
}

// APIRateLimit per-client limit for the analysis API
func APIRateLimit(perMinute int) RateLimitConfig {
	return RateLimitConfig{
		Key:    "api",
		Limit:  perMinute,
		Window: time.Minute,
	}
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{
		client:   client,
		prefix:   prefix,
		local:    make(map[string]*localBucket),
		maxLocal: DefaultMaxLocalBuckets,
		now:      time.Now,
	}
}

// slidingWindow 원자적 윈도우 정리 + 카운트 + 추가
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	-- Remove old entries outside the window
	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	-- Count current requests in window
	local count = redis.call('ZCARD', key)

	if count < limit then
		-- Add current request
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
	if cfg.Limit <= 0 {
		// 0 = 제한 없음
		return true, 0, nil
	}

	if !r.client.Enabled() {
		return r.allowLocal(cfg)
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()

	result, err := slidingWindow.Run(ctx, r.client.Redis(), []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(result))
	}

	return result[0] == 1, int(result[1]), nil
}

// allowLocal 단일 프로세스 토큰 버킷 (Limit개 버스트, Window 동안 Limit개 보충)
func (r *RateLimiter) allowLocal(cfg RateLimitConfig) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.evictLocked(now, cfg.Window)

	b, ok := r.local[cfg.Key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.Limit)), cfg.Limit)}
		r.local[cfg.Key] = b
	}
	b.lastSeen = now

	allowed := b.limiter.AllowN(now, 1)
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining, nil
}

// evictLocked Window 이상 쓰이지 않은 버킷 제거 (그 사이 이미 가득 찼으므로 결과 불변)
// 상한을 넘으면 가장 오래 쓰이지 않은 버킷부터 제거
func (r *RateLimiter) evictLocked(now time.Time, window time.Duration) {
	if now.Sub(r.lastSweep) >= window {
		for key, b := range r.local {
			if now.Sub(b.lastSeen) >= window {
				delete(r.local, key)
			}
		}
		r.lastSweep = now
	}

	for r.maxLocal > 0 && len(r.local) >= r.maxLocal {
		var (
			oldestKey string
			oldest    time.Time
		)
		for key, b := range r.local {
			if oldestKey == "" || b.lastSeen.Before(oldest) {
				oldestKey, oldest = key, b.lastSeen
			}
		}
		delete(r.local, oldestKey)
	}
}
