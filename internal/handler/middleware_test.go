package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kynor-backend/internal/config"
)

func TestRateLimiter_SweepsIdleClientsPeriodically(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 60, Burst: 5})
	r.now = func() time.Time { return now }

	assert.True(t, r.allow("10.0.0.1"))
	assert.True(t, r.allow("10.0.0.2"))
	assert.Len(t, r.clients, 2)

	// 超过空闲时间但距上次清理不足一个周期时，其余客户端保留
	now = now.Add(limiterIdleTTL + time.Second)
	r.lastSweep = now.Add(-limiterSweepInterval / 2)
	assert.True(t, r.allow("10.0.0.3"))
	assert.Len(t, r.clients, 3)

	now = now.Add(limiterSweepInterval)
	assert.True(t, r.allow("10.0.0.3"))
	assert.Len(t, r.clients, 1)
	assert.Contains(t, r.clients, "10.0.0.3")
	assert.Equal(t, now, r.lastSweep)
}

func TestRateLimiter_LimitsPerClient(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1})
	r.now = func() time.Time { return now }

	assert.True(t, r.allow("a"))
	assert.False(t, r.allow("a"))
	assert.True(t, r.allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, r.allow("a"))
}
