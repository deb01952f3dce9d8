package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestIPRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewIPRateLimiter(rate.Every(time.Second), 2)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"), "burst exhausted")
	assert.True(t, rl.Allow("2.2.2.2"), "clients are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "refilled after one interval")

	now = now.Add(limiterIdle + limiterSweep + time.Second)
	rl.Allow("3.3.3.3")
	rl.mu.Lock()
	_, kept := rl.limiters["1.1.1.1"]
	rl.mu.Unlock()
	assert.False(t, kept, "idle entries are evicted")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.3")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}
