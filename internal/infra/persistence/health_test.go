package persistence

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type switchPinger struct{ fail atomic.Bool }

func (p *switchPinger) Ping(context.Context) error {
	if p.fail.Load() {
		return errors.New("connection reset")
	}
	return nil
}

func TestConnectionMonitor(t *testing.T) {
	p := &switchPinger{}
	m := NewConnectionMonitor(p, time.Hour, testLogger)
	ctx := context.Background()

	m.Check(ctx)
	assert.True(t, m.Health(ctx).Ready)

	p.fail.Store(true)
	m.Check(ctx)
	status := m.Health(ctx)
	assert.False(t, status.Ready)
	assert.Equal(t, "connection reset", status.Message)

	p.fail.Store(false)
	m.Check(ctx)
	assert.True(t, m.IsHealthy())
}

func TestConnectionMonitorLifecycle(t *testing.T) {
	p := &switchPinger{}
	p.fail.Store(true)
	m := NewConnectionMonitor(p, 5*time.Millisecond, testLogger)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Start(context.Background()))
	assert.Eventually(t, func() bool { return !m.IsHealthy() }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))
	require.NoError(t, m.Stop(ctx))
}
