package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for a rate limiter.
// This allows for different implementations (e.g., in-memory, distributed).
type Limiter interface {
	// AllowN reports whether identifier may spend cost tokens now.
	AllowN(identifier string, cost int) bool
}

const defaultIdleTTL = 10 * time.Minute

// NewInMemoryRateLimiter creates a new in-memory rate limiter.
// It creates a new limiter for each identifier with the given rate and burst size.
func NewInMemoryRateLimiter(r rate.Limit, b int) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		rate:    r,
		burst:   b,
		idleTTL: defaultIdleTTL,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type InMemoryRateLimiter struct {
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func (l *InMemoryRateLimiter) AllowN(identifier string, cost int) bool {
	if cost < 1 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, exists := l.clients[identifier]
	if !exists {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[identifier] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, cost)
}

// sweep drops limiters idle for longer than idleTTL so the map does not grow with every peer
// ever seen. It runs at most once per idleTTL.
func (l *InMemoryRateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, id)
		}
	}
}

// Tracked reports how many identifiers currently hold a limiter.
func (l *InMemoryRateLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
