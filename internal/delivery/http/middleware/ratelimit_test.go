package middleware

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AllowUpToLimit(t *testing.T) {
	rl := NewRateLimiter(nil)

	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow(ClassRead, "10.0.0.1"), "request %d rejected below the limit", i+1)
	}
	assert.False(t, rl.Allow(ClassRead, "10.0.0.1"), "request 101 admitted over the limit")
}

func TestRateLimiter_ClassesAreIndependent(t *testing.T) {
	rl := NewRateLimiter(nil)

	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow(ClassBatch, "10.0.0.1"))
	}
	assert.False(t, rl.Allow(ClassBatch, "10.0.0.1"), "6th batch request admitted")
	// Same client still has headroom on other classes.
	assert.True(t, rl.Allow(ClassChatbot, "10.0.0.1"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(nil)

	for i := 0; i < 5; i++ {
		rl.Allow(ClassStrict, "10.0.0.1")
	}
	assert.False(t, rl.Allow(ClassStrict, "10.0.0.1"), "exhausted client admitted")
	assert.True(t, rl.Allow(ClassStrict, "10.0.0.2"), "fresh client rejected")
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		rl.Allow(ClassBatch, "10.0.0.1")
	}
	require.False(t, rl.Allow(ClassBatch, "10.0.0.1"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow(ClassBatch, "10.0.0.1"), "rejected after the window expired")
}

func TestRateLimiter_SweepDropsExpiredWindows(t *testing.T) {
	rl := NewRateLimiter(nil)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		rl.Allow(ClassGeneral, fmt.Sprintf("10.0.0.%d", i))
	}
	require.Len(t, rl.windows, 50)

	now = now.Add(2 * rateWindow)
	rl.Sweep()
	assert.Empty(t, rl.windows)
}

func TestRateLimiter_UnknownClassFallsBackToGeneral(t *testing.T) {
	rl := NewRateLimiter(nil)

	for i := 0; i < 200; i++ {
		require.True(t, rl.Allow("mystery", "10.0.0.1"))
	}
	assert.False(t, rl.Allow("mystery", "10.0.0.1"), "request 201 admitted over the general limit")
}
