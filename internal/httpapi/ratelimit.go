package httpapi

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenBucketScript = `
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])

	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)

	return { allowed, tokens, retry_after_ms }
`

// RateLimitConfig configures the per-caller token bucket.
type RateLimitConfig struct {
	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// Validate applies defaults and rejects unusable settings.
func (cfg *RateLimitConfig) Validate() error {
	if strings.TrimSpace(cfg.Prefix) == "" {
		cfg.Prefix = "seatd:ratelimit"
	}
	if cfg.RefillTokens <= 0 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Capacity <= 0 {
		return fmt.Errorf("rate limit capacity must be positive")
	}
	return nil
}

// scriptRunner evaluates the bucket script for one key.
type scriptRunner interface {
	Run(ctx context.Context, keys []string, args ...interface{}) ([]int64, error)
}

type redisScriptRunner struct {
	client redis.Scripter
	script *redis.Script
}

func (runner redisScriptRunner) Run(ctx context.Context, keys []string, args ...interface{}) ([]int64, error) {
	return runner.script.Run(ctx, runner.client, keys, args...).Int64Slice()
}

// RateLimiter throttles API calls per authenticated user, falling back to the
// client IP. Redis failures let the request through.
type RateLimiter struct {
	runner scriptRunner
	cfg    RateLimitConfig
	logger *zap.Logger
	nowFn  func() time.Time
}

// NewRateLimiter returns a RateLimiter backed by Redis.
func NewRateLimiter(client redis.Scripter, cfg RateLimitConfig, logger *zap.Logger) (*RateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("rate limiter: redis client is required")
	}
	return newRateLimiter(redisScriptRunner{client: client, script: redis.NewScript(tokenBucketScript)}, cfg, logger, time.Now)
}

func newRateLimiter(runner scriptRunner, cfg RateLimitConfig, logger *zap.Logger, now func() time.Time) (*RateLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{runner: runner, cfg: cfg, logger: logger, nowFn: now}, nil
}

// Middleware returns the gin handler enforcing the bucket.
func (limiter *RateLimiter) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := limiter.key(ctx)
		values, err := limiter.runner.Run(ctx.Request.Context(), []string{key},
			limiter.nowFn().UnixMilli(),
			limiter.cfg.Capacity,
			limiter.cfg.RefillTokens,
			limiter.cfg.RefillInterval.Milliseconds(),
			int64(limiter.cfg.TTL/time.Second),
		)
		if err != nil || len(values) != 3 {
			limiter.logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			ctx.Next()
			return
		}
		allowed, remaining, retryAfterMs := values[0] == 1, values[1], values[2]

		ctx.Header("X-RateLimit-Limit", strconv.Itoa(limiter.cfg.Capacity))
		ctx.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			seconds := int(math.Ceil(float64(retryAfterMs) / 1000.0))
			ctx.Header("Retry-After", strconv.Itoa(seconds))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse(errorCodeRateLimited, "rate limit exceeded"))
			return
		}
		ctx.Next()
	}
}

func (limiter *RateLimiter) key(ctx *gin.Context) string {
	if claims := getClaims(ctx); claims != nil && claims.GetUserID() != "" {
		return strings.Join([]string{limiter.cfg.Prefix, "user", claims.GetUserID()}, ":")
	}
	ip := ctx.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return strings.Join([]string{limiter.cfg.Prefix, "ip", ip}, ":")
}
