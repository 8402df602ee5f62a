package result

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically purges expired entries from a Cache.
type Janitor struct {
	cache    *Cache
	interval time.Duration
	logger   *zap.Logger
}

// NewJanitor creates a Janitor. A non-positive interval disables it.
func NewJanitor(cache *Cache, interval time.Duration) *Janitor {
	return &Janitor{
		cache:    cache,
		interval: interval,
		logger:   cache.logger,
	}
}

// Run purges on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := j.cache.PurgeExpired(ctx); err != nil {
				j.logger.Warn("Scheduled purge could not persist cache", zap.Error(err))
			}
		case <-ctx.Done():
			j.logger.Info("Stopping cache janitor due to context cancellation")
			return
		}
	}
}
