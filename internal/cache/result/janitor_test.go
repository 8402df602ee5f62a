package result_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/urlguard/internal/cache/result"
	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
)

func TestJanitorPurgesOnTick(t *testing.T) {
	f := newFixture(t, config.WithExpirationWindow(time.Hour))
	require.NoError(t, f.cache.Store(context.Background(), "http://stale.test", models.FeatureVector{}))
	f.clock.Set(t0.Add(2 * time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		result.NewJanitor(f.cache, 5*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.cache.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancellation")
	}
}

func TestJanitorDisabled(t *testing.T) {
	f := newFixture(t)
	done := make(chan struct{})
	go func() {
		result.NewJanitor(f.cache, 0).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled janitor should return immediately")
	}
}
