package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window. Zero or negative
	// disables limiting.
	Max int
	// Window is the length of the sliding window.
	Window time.Duration
	// KeyFunc groups requests. Defaults to ClientKey.
	KeyFunc func(*http.Request) string
	// SkipPaths are exempt from limiting, e.g. health probes.
	SkipPaths []string
}

// counter is the sliding window state of one key: the count of the
// previous fixed window and of the current one.
type counter struct {
	prev, curr float64
	start      time.Time
}

// advance moves the window forward so that now falls into the current one.
func (c *counter) advance(now time.Time, size time.Duration) {
	elapsed := now.Sub(c.start)
	switch {
	case elapsed < size:
		return
	case elapsed < 2*size:
		c.prev = c.curr
	default:
		c.prev = 0
	}
	c.curr = 0
	c.start = now.Truncate(size)
}

// estimate weights the previous window by its overlap with the sliding one.
func (c *counter) estimate(now time.Time, size time.Duration) float64 {
	overlap := 1 - float64(now.Sub(c.start))/float64(size)
	return c.prev*max(overlap, 0) + c.curr
}

type limiter struct {
	max    int
	window time.Duration

	mu       sync.Mutex
	counters map[string]*counter
}

func newLimiter(maxReq int, window time.Duration) *limiter {
	return &limiter{
		max:      maxReq,
		window:   window,
		counters: make(map[string]*counter),
	}
}

// take records a request for key unless the key is over its limit.
func (l *limiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.counters[key]
	if c == nil {
		c = &counter{start: now.Truncate(l.window)}
		l.counters[key] = c
	}
	c.advance(now, l.window)

	reset = c.start.Add(l.window)
	used := c.estimate(now, l.window)
	if used >= float64(l.max) {
		return 0, reset, false
	}
	c.curr++
	return max(int(float64(l.max)-used-1), 0), reset, true
}

// sweep forgets keys idle for two windows.
func (l *limiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.window {
			delete(l.counters, key)
		}
	}
}

func (l *limiter) sweepEvery(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				l.sweep(now)
			}
		}
	}()
}

// RateLimit returns a middleware enforcing a per-key sliding window limit.
// Limited requests get 429 with a JSON error body and Retry-After. Every
// limited-path response carries X-RateLimit-Limit, X-RateLimit-Remaining
// and X-RateLimit-Reset.
//
// State of idle keys is kept forever; long-running servers should use
// RateLimitWithCleanup.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(cfg, newLimiter(cfg.Max, cfg.Window))
}

// RateLimitWithCleanup is RateLimit plus a goroutine that drops idle keys
// every two windows until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := newLimiter(cfg.Max, cfg.Window)
	if cfg.Max > 0 {
		l.sweepEvery(ctx, 2*cfg.Window)
	}
	return rateLimit(cfg, l)
}

func rateLimit(cfg RateLimitConfig, l *limiter) Middleware {
	if cfg.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = ClientKey
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}
	limit := strconv.Itoa(cfg.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			remaining, reset, ok := l.take(keyOf(r), time.Now())
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			if !ok {
				wait := max(time.Until(reset), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientKey identifies the caller: a digest of the bearer token when one is
// sent, otherwise the client IP (first X-Forwarded-For hop, X-Real-IP, then
// the remote address). Signed-in users behind one NAT get separate budgets.
func ClientKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok &&
		strings.EqualFold(scheme, "Bearer") && token != "" {
		sum := sha256.Sum256([]byte(token))
		return "token:" + hex.EncodeToString(sum[:12])
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
