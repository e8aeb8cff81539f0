package persistence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spounge-ai/auditchain/pkg/execution"
	"github.com/spounge-ai/auditchain/pkg/patterns/lifecycle"
)

const pingTimeout = 5 * time.Second

// Pinger is implemented by stores with a remote connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionMonitor pings the store periodically and logs transitions between healthy and
// unhealthy.
type ConnectionMonitor struct {
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	isHealthy bool
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewConnectionMonitor(pinger Pinger, interval time.Duration, logger *slog.Logger) *ConnectionMonitor {
	return &ConnectionMonitor{
		pinger:    pinger,
		interval:  interval,
		logger:    logger,
		isHealthy: true, // Assume healthy on startup
	}
}

func (cm *ConnectionMonitor) Start(ctx context.Context) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cm.cancel = cancel
	cm.done = make(chan struct{})
	go cm.run(runCtx, cm.done)
	return nil
}

func (cm *ConnectionMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cm.Check(ctx)
		}
	}
}

// Check pings once and records the result.
func (cm *ConnectionMonitor) Check(ctx context.Context) {
	_, err := execution.WithTimeout(ctx, pingTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, cm.pinger.Ping(ctx)
	})

	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.lastErr = err
	switch {
	case err != nil && cm.isHealthy:
		cm.isHealthy = false
		cm.logger.ErrorContext(ctx, "audit store connection unhealthy", "error", err)
	case err == nil && !cm.isHealthy:
		cm.isHealthy = true
		cm.logger.InfoContext(ctx, "audit store connection recovered")
	}
}

func (cm *ConnectionMonitor) Stop(ctx context.Context) error {
	cm.mu.Lock()
	cancel, done := cm.cancel, cm.done
	cm.cancel = nil
	cm.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cm *ConnectionMonitor) Health(context.Context) lifecycle.HealthStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if cm.isHealthy {
		return lifecycle.HealthStatus{Ready: true}
	}
	return lifecycle.HealthStatus{Ready: false, Message: cm.lastErr.Error()}
}

func (cm *ConnectionMonitor) IsHealthy() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isHealthy
}
