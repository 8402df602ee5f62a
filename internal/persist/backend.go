package persist

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/retrier"
)

// Backend hands out the cache and metrics blobs for the configured storage.
// With Redis both blobs share one client and one circuit breaker.
type Backend struct {
	cfg     *config.Config
	client  *redis.Client
	retrier *retrier.Retrier
	cb      *gobreaker.CircuitBreaker
}

// NewBackend connects the configured backend. For Redis the connection is
// verified with PING.
func NewBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	rc := cfg.ResilienceConfig
	r, err := retrier.NewRetrier(
		rc.MaxRetries,
		rc.InitialInterval,
		rc.MaxInterval,
		rc.Multiplier,
		rc.RandomizationFactor,
		retrier.ExponentialBackoff,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	b := &Backend{
		cfg:     cfg,
		retrier: r,
		cb:      gobreaker.NewCircuitBreaker(rc.CircuitBreaker),
	}

	if cfg.Persistence.Backend == config.BackendRedis {
		b.client = redis.NewClient(&redis.Options{
			Addr:     cfg.Persistence.RedisAddr,
			Password: cfg.Persistence.RedisPassword,
			DB:       cfg.Persistence.RedisDB,
		})
		if err := b.client.Ping(ctx).Err(); err != nil {
			_ = b.client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	return b, nil
}

// CacheBlob returns the blob holding the result cache snapshot.
func (b *Backend) CacheBlob() Blob {
	return b.blob(b.cfg.StoragePath)
}

// MetricsBlob returns the blob holding the metrics snapshot.
func (b *Backend) MetricsBlob() Blob {
	return b.blob(b.cfg.MetricsPath)
}

func (b *Backend) blob(path string) Blob {
	var raw Blob
	if b.client != nil {
		raw = NewRedisBlob(b.client, b.cfg.Persistence.RedisKeyPrefix+filepath.Base(path))
	} else {
		raw = NewFileBlob(path)
	}
	return NewResilient(raw, b.retrier, b.cb, b.cfg.Logger)
}

// Close releases the Redis connection, if any.
func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}
