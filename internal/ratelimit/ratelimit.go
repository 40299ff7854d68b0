// Package ratelimit implements the per-endpoint sliding-60s rate limiter
// and per-user daily quota described in spec.md §4.8, as a pair of chi
// middleware. Grounded on
// original_source/app/middleware/rate_limit.py's RateLimitMiddleware/
// QuotaMiddleware (endpoint_limits map, increment_with_ttl atomic
// INCR+EXPIRE, fail-open on Redis error) and on the teacher's
// middleware-as-closure-over-dependencies style
// (internal/server/server.go's loggingMiddleware).
package ratelimit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// endpointLimits mirrors RateLimitMiddleware.endpoint_limits; any path
// not listed here falls back to defaultLimit. Paths are looked up with the
// server's "/api" mount prefix removed.
var endpointLimits = map[string]int{
	"/analysis/single":  10,
	"/analysis/batch":   5,
	"/screening/filter": 20,
	"/auth/login":       5,
	"/auth/register":    3,
}

const defaultLimit = 100

// quotaEndpoints mirrors QuotaMiddleware.quota_endpoints.
var quotaEndpoints = map[string]bool{
	"/analysis/single":  true,
	"/analysis/batch":   true,
	"/screening/filter": true,
}

const dailyQuotaDefault = 1000

// exemptPrefixes are never rate-limited or quota-checked, matching the
// original's health/docs bypass.
var exemptPrefixes = []string{"/health", "/docs", "/openapi.json"}

// UserIDFunc extracts the authenticated user id from a request, or ""
// for an anonymous caller. Authentication itself is out of scope
// (spec.md §1); the middleware only needs this one hook.
type UserIDFunc func(r *http.Request) string

// HeaderUserID is the UserIDFunc this module wires by default: identity
// comes from an X-User-Id header set by whatever sits in front of this
// service, since auth/session management itself is out of scope.
func HeaderUserID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// Limiter gates requests through Redis-backed counters. The gate fails
// open: a Redis error lets the request through, since spec.md §4.8 says
// availability is prioritized over precision.
type Limiter struct {
	client     *redis.Client
	userID     UserIDFunc
	dailyQuota int
	log        zerolog.Logger
}

func New(client *redis.Client, userID UserIDFunc, dailyQuota int, log zerolog.Logger) *Limiter {
	if dailyQuota <= 0 {
		dailyQuota = dailyQuotaDefault
	}
	return &Limiter{client: client, userID: userID, dailyQuota: dailyQuota, log: log.With().Str("component", "ratelimit").Logger()}
}

func isExempt(path string) bool {
	for _, p := range exemptPrefixes {
		if len(path) >= len(p) && path[:len(p)] == p {
			return true
		}
	}
	return false
}

// identity returns the authenticated user id, or "ip:{addr}" for an
// anonymous caller — the rate limiter always has an identity to key on,
// even though the quota middleware treats anonymous callers differently.
func (l *Limiter) identity(r *http.Request) string {
	if uid := l.userID(r); uid != "" {
		return uid
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// writeLimitError writes the structured 429 payload, shared shape between
// the rate limit and quota gates per spec.md §6 (only the inner fields
// differ).
func writeLimitError(w http.ResponseWriter, code, message string, extra map[string]any) {
	body := map[string]any{"error": mergeMaps(map[string]any{"code": code, "message": message}, extra)}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(body)
}

func mergeMaps(a, b map[string]any) map[string]any {
	for k, v := range b {
		a[k] = v
	}
	return a
}

// RateLimit enforces the per-endpoint sliding-60s counter.
func (l *Limiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/api")
		limit, ok := endpointLimits[path]
		if !ok {
			limit = defaultLimit
		}
		id := l.identity(r)
		key := "user:rate_limit:" + id + ":" + sanitize(path)

		count, err := incrementWithTTL(r.Context(), l.client, key, 60*time.Second)
		if err != nil {
			l.log.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if count > int64(limit) {
			writeLimitError(w, "RATE_LIMIT_EXCEEDED", "请求过于频繁，请稍后重试", map[string]any{
				"rate_limit": limit, "current_count": count, "reset_time": 60,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Quota enforces the per-user daily cap on analysis/screening endpoints.
// Anonymous callers bypass quota entirely (but not rate limiting).
func (l *Limiter) Quota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !quotaEndpoints[strings.TrimPrefix(r.URL.Path, "/api")] {
			next.ServeHTTP(w, r)
			return
		}
		uid := l.userID(r)
		if uid == "" {
			next.ServeHTTP(w, r)
			return
		}

		today := time.Now().UTC().Format("2006-01-02")
		key := "user:daily_quota:" + uid + ":" + today
		usage, err := incrementWithTTL(r.Context(), l.client, key, 24*time.Hour)
		if err != nil {
			l.log.Warn().Err(err).Msg("quota check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if usage > int64(l.dailyQuota) {
			writeLimitError(w, "DAILY_QUOTA_EXCEEDED", "今日配额已用完，请明天再试", map[string]any{
				"daily_quota": l.dailyQuota, "current_usage": usage, "reset_date": today,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// incrementWithTTL atomically increments key and sets its TTL on the
// first increment only, mirroring RedisService.increment_with_ttl: a
// pipeline of INCR then EXPIRE-NX.
func incrementWithTTL(ctx context.Context, client *redis.Client, key string, ttl time.Duration) (int64, error) {
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func sanitize(path string) string {
	out := []byte(path)
	for i, c := range out {
		if c == '/' {
			out[i] = '_'
		}
	}
	return string(out)
}
