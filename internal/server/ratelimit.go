package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterIdle  = 10 * time.Minute
	limiterSweep = time.Minute
)

// ipLimiterEntry holds a rate limiter and last-seen timestamp for cleanup.
type ipLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages per-IP rate limiters. Entries idle for ten minutes
// are evicted during later lookups.
type IPRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiterEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter creates a rate limiter that allows r events per second
// per client with the given burst size.
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*ipLimiterEntry),
		rate:     r,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether a request from ip may proceed now.
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.getLimiter(ip).AllowN(rl.now(), 1)
}

// getLimiter returns the rate limiter for the given IP, creating one if needed.
func (rl *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > limiterSweep {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > limiterIdle {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	entry, exists := rl.limiters[ip]
	if !exists {
		entry = &ipLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// clientIP extracts the client IP, preferring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitHandler wraps an http.Handler with per-IP rate limiting.
// Returns 429 Too Many Requests when the limit is exceeded.
func RateLimitHandler(rl *IPRateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			note(r, "throttled", true)
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, APIError{
				Status: http.StatusTooManyRequests,
				Error:  http.StatusText(http.StatusTooManyRequests),
				Detail: "rate limit exceeded",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
