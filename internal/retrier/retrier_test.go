package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tempErr struct{ temporary bool }

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return e.temporary }

func TestNewRetrierValidation(t *testing.T) {
	_, err := NewRetrier(0, time.Millisecond, time.Second, 2, 0, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	_, err = NewRetrier(1, 0, time.Second, 2, 0, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidBaseDelay)
	_, err = NewRetrier(1, time.Millisecond, time.Second, 0.5, 0, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidFactor)
	_, err = NewRetrier(1, time.Millisecond, time.Second, 2, 2, ExponentialBackoff, nil)
	assert.ErrorIs(t, err, ErrInvalidJitter)
}

func TestRunRetriesTemporaryErrors(t *testing.T) {
	r, err := NewRetrier(3, time.Millisecond, 2*time.Millisecond, 2, 0, ExponentialBackoff, nil)
	require.NoError(t, err)

	calls := 0
	err = r.Run(context.Background(), func() error {
		calls++
		if calls < 3 {
			return tempErr{temporary: true}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunStopsOnPermanentError(t *testing.T) {
	r, err := NewRetrier(5, time.Millisecond, time.Millisecond, 1, 0, LinearBackoff, nil)
	require.NoError(t, err)

	calls := 0
	permanent := errors.New("permanent")
	err = r.Run(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRunExhaustsAttempts(t *testing.T) {
	r, err := NewRetrier(2, time.Millisecond, time.Millisecond, 1, 0, FibonacciBackoff, func(error) bool { return true })
	require.NoError(t, err)

	calls := 0
	err = r.Run(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	assert.ErrorContains(t, err, "max retry attempts reached")
	assert.Equal(t, 2, calls)
}

func TestRunHonoursContext(t *testing.T) {
	r, err := NewRetrier(3, time.Second, time.Second, 1, 0, LinearBackoff, func(error) bool { return true })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = r.Run(ctx, func() error { return errors.New("boom") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelay(t *testing.T) {
	r := &Retrier{baseDelay: 10 * time.Millisecond, maxDelay: 50 * time.Millisecond, factor: 2, strategy: ExponentialBackoff}
	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(0))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 50*time.Millisecond, r.calculateDelay(5))

	r.strategy = FibonacciBackoff
	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(0))
	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 30*time.Millisecond, r.calculateDelay(3))
}
