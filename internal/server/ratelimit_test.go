package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are limited independently")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.Allow("a")

	rl.Cleanup(time.Hour)
	assert.Len(t, rl.visitors, 1)

	rl.Cleanup(0)
	assert.Empty(t, rl.visitors)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", clientIP("192.0.2.1:1234"))
	assert.Equal(t, "::1", clientIP("[::1]:80"))
	assert.Equal(t, "192.0.2.1", clientIP("192.0.2.1"))
}
