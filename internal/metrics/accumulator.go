// Package metrics accumulates cache hit/miss statistics for the lifetime of
// the process and persists point-in-time snapshots for external readers.
package metrics

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
	"goflare.io/urlguard/internal/persist"
	"goflare.io/urlguard/pkg/serialization"
)

// Accumulator tracks cache hits and misses. Counters only ever grow.
type Accumulator struct {
	hits      *atomic.Int64
	misses    *atomic.Int64
	timeSaved *atomic.Float64
	startTime time.Time

	blob   persist.Blob
	codec  serialization.Codec
	clock  func() time.Time
	logger *zap.Logger

	persistMu sync.Mutex
}

// NewAccumulator creates an Accumulator whose snapshots are written to blob.
// The uptime clock starts now.
func NewAccumulator(cfg *config.Config, blob persist.Blob) *Accumulator {
	return &Accumulator{
		hits:      atomic.NewInt64(0),
		misses:    atomic.NewInt64(0),
		timeSaved: atomic.NewFloat64(0),
		startTime: cfg.Now(),
		blob:      blob,
		codec:     cfg.Serialization,
		clock:     cfg.Now,
		logger:    cfg.Logger,
	}
}

// RecordHit counts a cache hit that avoided roughly timeSaved of work.
func (a *Accumulator) RecordHit(timeSaved time.Duration) {
	if timeSaved < 0 {
		timeSaved = 0
	}
	a.timeSaved.Add(timeSaved.Seconds())
	a.hits.Inc()
}

// RecordMiss counts a cache miss.
func (a *Accumulator) RecordMiss() {
	a.misses.Inc()
}

// Snapshot derives the current statistics without changing any state.
func (a *Accumulator) Snapshot() models.Snapshot {
	hits := a.hits.Load()
	misses := a.misses.Load()
	saved := a.timeSaved.Load()

	s := models.Snapshot{
		CacheHits:      hits,
		CacheMisses:    misses,
		TotalTimeSaved: saved,
		RequestsServed: hits + misses,
		UptimeSeconds:  a.clock().Sub(a.startTime).Seconds(),
	}
	if s.RequestsServed > 0 {
		s.HitRatio = float64(hits) / float64(s.RequestsServed)
	}
	if hits > 0 {
		s.AvgTimeSaved = saved / float64(hits)
	}
	return s
}

// Persist overwrites the stored snapshot with the current, rounded one.
func (a *Accumulator) Persist(ctx context.Context) error {
	if a.blob == nil {
		return nil
	}

	a.persistMu.Lock()
	defer a.persistMu.Unlock()

	snapshot := a.Snapshot().Rounded()

	var buf bytes.Buffer
	if err := a.codec.Encoder(&buf).Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode metrics snapshot: %w", err)
	}
	if err := a.blob.Save(ctx, buf.Bytes()); err != nil {
		a.logger.Warn("Failed to persist metrics snapshot",
			zap.String("location", a.blob.Location()), zap.Error(err))
		return err
	}
	return nil
}

// Load reads the last persisted snapshot, which may come from an earlier
// process. It returns persist.ErrNotExist when none was written.
func (a *Accumulator) Load(ctx context.Context) (models.Snapshot, error) {
	var s models.Snapshot
	if a.blob == nil {
		return s, persist.ErrNotExist
	}
	data, err := a.blob.Load(ctx)
	if err != nil {
		return s, err
	}
	if err := a.codec.Decoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return s, fmt.Errorf("failed to decode metrics snapshot: %w", err)
	}
	return s, nil
}
