package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_checkout/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTransport_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := retryTransport(context.Background(), 3, time.Millisecond, "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryTransport_BusinessErrorNotRetried(t *testing.T) {
	calls := 0
	err := retryTransport(context.Background(), 3, time.Millisecond, "op", func(context.Context) error {
		calls++
		return &domain.OutOfStockError{SKU: "SKU-A"}
	})

	var oos *domain.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, 1, calls)
}

func TestRetryTransport_ExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still down")
	err := retryTransport(context.Background(), 3, time.Millisecond, "op", func(context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestRetryTransport_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryTransport(ctx, 5, time.Hour, "op", func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "cancellation must not wait out the backoff")
}

func TestRetryCompensation_IgnoresCancelledCaller(t *testing.T) {
	calls := 0
	err := retryCompensation(5, time.Millisecond, "op", func(ctx context.Context) error {
		calls++
		require.NoError(t, ctx.Err(), "compensation runs on a live context")
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryCompensation_Exhausts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still down")
	err := retryCompensation(5, time.Millisecond, "op", func(context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 5, calls)
}
