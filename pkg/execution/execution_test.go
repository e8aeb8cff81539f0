package execution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spounge-ai/auditchain/pkg/execution"
)

var errTransient = errors.New("transient")

func TestWithRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	got, err := execution.WithRetry(context.Background(), execution.RetryPolicy{MaxRetries: 5}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	retries := 0
	_, err := execution.WithRetry(context.Background(), execution.RetryPolicy{
		MaxRetries: 2,
		OnRetry:    func(int, error) { retries++ },
	}, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestWithRetrySkipsPermanentErrors(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := execution.WithRetry(context.Background(), execution.RetryPolicy{
		MaxRetries: 5,
		Retryable:  func(err error) bool { return errors.Is(err, errTransient) },
	}, func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := execution.WithRetry(ctx, execution.RetryPolicy{MaxRetries: 3, InitialBackoff: time.Second}, func(ctx context.Context) (int, error) {
		return 0, errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout(t *testing.T) {
	_, err := execution.WithTimeout(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
