package handler

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/shortly/pkg/metrics"
)

// Limiter decides whether the caller identified by key may proceed. When
// it may not, retryAfter says how long to wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisLimiter is a fixed window counter shared by every instance.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

const defaultPerMinute = 60

func NewRedisLimiter(client *redis.Client, perMinute int) *RedisLimiter {
	if perMinute < 1 {
		perMinute = defaultPerMinute
	}
	return &RedisLimiter{client: client, limit: int64(perMinute), window: time.Minute}
}

// windowScript counts a hit and makes sure the key expires, in one step.
// A key left without a TTL gets one on the next hit.
var windowScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = "ratelimit:" + key

	res, err := windowScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return true, 0, errors.Wrap(err, "redis window")
	}
	if len(res) != 2 {
		return true, 0, errors.Errorf("redis window: unexpected reply %v", res)
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if count <= l.limit {
		return true, 0, nil
	}
	if ttl <= 0 {
		ttl = l.window
	}
	return false, ttl, nil
}

const maxBuckets = 10000

// BucketLimiter keeps one token bucket per key in process memory.
type BucketLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*ratelimit.Bucket
	rate     float64
	capacity int64
}

func NewBucketLimiter(perMinute int) *BucketLimiter {
	if perMinute < 1 {
		perMinute = defaultPerMinute
	}
	return &BucketLimiter{
		buckets:  make(map[string]*ratelimit.Bucket),
		rate:     float64(perMinute) / 60,
		capacity: int64(perMinute),
	}
}

func (l *BucketLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxBuckets {
			l.pruneLocked()
		}
		b = ratelimit.NewBucketWithRate(l.rate, l.capacity)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	if b.TakeAvailable(1) == 1 {
		return true, 0, nil
	}
	return false, time.Duration(float64(time.Second) / l.rate), nil
}

// pruneLocked drops buckets that have refilled completely.
func (l *BucketLimiter) pruneLocked() {
	for k, b := range l.buckets {
		if b.Available() >= l.capacity {
			delete(l.buckets, k)
		}
	}
}

// RateLimit rejects callers over their limit with 429. Limiter errors let
// the request through.
func RateLimit(limiter Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("%s:%s", clientIP(r), r.URL.Path)

			ctx, cancel := context.WithTimeout(r.Context(), 100*time.Millisecond)
			allowed, retryAfter, err := limiter.Allow(ctx, key)
			cancel()
			if err != nil {
				log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				metrics.RateLimited.WithLabelValues(r.URL.Path).Inc()
				secs := int(math.Ceil(retryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RealIP replaces r.RemoteAddr with the client address reported by a
// trusted proxy. Requests from any other peer keep their socket address,
// so forwarding headers cannot be used to pick a rate limit bucket.
func RealIP(trusted []netip.Prefix) func(http.Handler) http.Handler {
	isTrusted := func(addr netip.Addr) bool {
		for _, p := range trusted {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, err := netip.ParseAddr(clientIP(r))
			if err == nil && isTrusted(peer.Unmap()) {
				if ip := forwardedFor(r, isTrusted); ip != "" {
					r.RemoteAddr = ip
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// forwardedFor walks X-Forwarded-For from the nearest hop and returns the
// first address that is not itself a trusted proxy, then falls back to
// X-Real-IP.
func forwardedFor(r *http.Request, isTrusted func(netip.Addr) bool) string {
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		if !isTrusted(addr.Unmap()) {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return ""
}

// clientIP is the host part of r.RemoteAddr, as set by the server or RealIP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
