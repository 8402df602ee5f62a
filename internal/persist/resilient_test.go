package persist_test

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/urlguard/internal/persist"
	"goflare.io/urlguard/internal/retrier"
)

type flakyBlob struct {
	failures int
	err      error
	saves    int
	data     []byte
	missing  bool
}

func (f *flakyBlob) Location() string { return "flaky" }

func (f *flakyBlob) Load(context.Context) ([]byte, error) {
	if f.missing {
		return nil, persist.ErrNotExist
	}
	return f.data, nil
}

func (f *flakyBlob) Save(_ context.Context, data []byte) error {
	f.saves++
	if f.saves <= f.failures {
		return &persist.Error{Op: "save", Location: "flaky", Err: f.err}
	}
	f.data = data
	return nil
}

func newRetrier(t *testing.T) *retrier.Retrier {
	t.Helper()
	r, err := retrier.NewRetrier(3, time.Millisecond, time.Millisecond, 1, 0, retrier.ExponentialBackoff, nil)
	require.NoError(t, err)
	return r
}

func TestResilientRetriesTemporaryFailure(t *testing.T) {
	blob := &flakyBlob{failures: 2, err: syscall.ENOSPC}
	r := persist.NewResilient(blob, newRetrier(t), nil, zap.NewNop())

	require.NoError(t, r.Save(context.Background(), []byte("x")))
	assert.Equal(t, 3, blob.saves)
	assert.Equal(t, "x", string(blob.data))
}

func TestResilientDoesNotRetryPermanentFailure(t *testing.T) {
	blob := &flakyBlob{failures: 5, err: syscall.EACCES}
	r := persist.NewResilient(blob, newRetrier(t), nil, zap.NewNop())

	err := r.Save(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, persist.ErrPersistence)
	assert.ErrorIs(t, err, syscall.EACCES)
	assert.Equal(t, 1, blob.saves)
}

func TestResilientBreakerOpens(t *testing.T) {
	blob := &flakyBlob{failures: 100, err: errors.New("disk gone")}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	})
	r := persist.NewResilient(blob, nil, cb, zap.NewNop())

	for i := 0; i < 2; i++ {
		assert.Error(t, r.Save(context.Background(), nil))
	}
	err := r.Save(context.Background(), nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, persist.ErrPersistence)
	assert.Equal(t, 2, blob.saves)
}

func TestResilientLoadMissingDoesNotTrip(t *testing.T) {
	blob := &flakyBlob{missing: true}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	r := persist.NewResilient(blob, nil, cb, nil)

	for i := 0; i < 3; i++ {
		_, err := r.Load(context.Background())
		assert.ErrorIs(t, err, persist.ErrNotExist)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
