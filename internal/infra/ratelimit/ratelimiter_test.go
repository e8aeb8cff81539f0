package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestInMemoryRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewInMemoryRateLimiter(rate.Limit(1), 10)
	l.now = func() time.Time { return now }

	t.Run("cost is charged against the burst", func(t *testing.T) {
		assert.True(t, l.AllowN("a", 6))
		assert.True(t, l.AllowN("a", 4))
		assert.False(t, l.AllowN("a", 1))
	})

	t.Run("identifiers are independent", func(t *testing.T) {
		assert.True(t, l.AllowN("b", 10))
	})

	t.Run("tokens refill over time", func(t *testing.T) {
		now = now.Add(3 * time.Second)
		assert.True(t, l.AllowN("a", 3))
		assert.False(t, l.AllowN("a", 1))
	})

	t.Run("zero cost counts as one", func(t *testing.T) {
		now = now.Add(time.Second)
		assert.True(t, l.AllowN("a", 0))
		assert.False(t, l.AllowN("a", 0))
	})

	t.Run("idle identifiers are evicted", func(t *testing.T) {
		now = now.Add(defaultIdleTTL + time.Minute)
		assert.True(t, l.AllowN("c", 1))
		assert.Equal(t, 1, l.Tracked())
	})
}
