package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/httputil"
	"github.com/appcuatri/backend/pkg/observability"
)

// RateLimitConfig defines a fixed-window rate limit
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultRateLimitConfig limits the auth endpoints to 10 attempts per
// minute per client
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
	}
}

// DistributedRateLimiter implements rate limiting using Redis so the
// window is shared across instances.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Allow checks if a request is allowed under the fixed window
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, rl.config.WindowDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open on Redis errors so an outage never locks out logins.
		return true, fmt.Errorf("redis error: %w", err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	count, err := rl.redis.Get(ctx, redisKey).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.RequestsPerWindow - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// TTL returns the time until the window resets
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Result()
}

// Reset clears the window for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}

// Middleware limits requests per client IP. Intended for the
// unauthenticated auth endpoints where credential stuffing happens.
func (rl *DistributedRateLimiter) Middleware(scope string, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := scope + ":ip:" + getClientIP(r)

			allowed, err := rl.Allow(ctx, key)
			if err != nil {
				// Fail open, see Allow.
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				if metrics != nil {
					metrics.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
				}
				rl.writeRateLimited(ctx, w, key)
				return
			}

			if remaining, err := rl.Remaining(ctx, key); err == nil {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (rl *DistributedRateLimiter) writeRateLimited(ctx context.Context, w http.ResponseWriter, key string) {
	retryAfter := rl.config.WindowDuration.Seconds()
	if ttl, err := rl.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = ttl.Seconds()
	}

	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")

	httputil.WriteErrorEnvelope(w, http.StatusTooManyRequests,
		"Demasiadas solicitudes, intenta de nuevo más tarde",
		apierr.CodeRateLimited, nil)
}

// getClientIP resolves the client address behind proxies
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
