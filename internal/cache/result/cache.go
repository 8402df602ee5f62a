// Package result implements the persisted, time-bounded URL → feature vector
// cache that lets the service skip feature extraction for recently seen URLs.
package result

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
	"goflare.io/urlguard/internal/persist"
	"goflare.io/urlguard/pkg/serialization"
)

// ErrEmptyKey is returned when a lookup or store is attempted with an empty URL.
var ErrEmptyKey = errors.New("cache key must not be empty")

// Recorder receives hit and miss events. *metrics.Accumulator implements it.
type Recorder interface {
	RecordHit(timeSaved time.Duration)
	RecordMiss()
	Persist(ctx context.Context) error
}

// Cache maps raw URL strings to feature vectors. Keys are compared exactly;
// no URL normalization takes place.
//
// Every mutation rewrites the whole snapshot while holding the write lock, so
// the persisted state is never an interleaving of two writers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*models.Entry
	dirty   bool

	window    time.Duration
	timeSaved time.Duration
	clock     func() time.Time

	blob     persist.Blob
	codec    serialization.Codec
	recorder Recorder
	filter   *BloomFilter

	tracer trace.Tracer
	logger *zap.Logger
}

// New creates a Cache and loads its snapshot from blob. A missing or
// unreadable snapshot yields an empty cache; it is never an error. recorder
// may be nil.
func New(ctx context.Context, cfg *config.Config, blob persist.Blob, recorder Recorder) (*Cache, error) {
	if cfg.ExpirationWindow <= 0 {
		return nil, config.ErrInvalidExpiration
	}

	c := &Cache{
		entries:   make(map[string]*models.Entry),
		window:    cfg.ExpirationWindow,
		timeSaved: cfg.EstimatedTimeSaved,
		clock:     cfg.Now,
		blob:      blob,
		codec:     cfg.Serialization,
		recorder:  recorder,
		filter:    NewBloomFilter(cfg.BloomFilter),
		tracer:    otel.Tracer("urlguard/cache"),
		logger:    cfg.Logger,
	}

	c.load(ctx)
	return c, nil
}

func (c *Cache) load(ctx context.Context) {
	data, err := c.blob.Load(ctx)
	if err != nil {
		if errors.Is(err, persist.ErrNotExist) {
			c.logger.Info("No cache snapshot found, starting cold", zap.String("location", c.blob.Location()))
		} else {
			c.logger.Warn("Failed to read cache snapshot, starting cold",
				zap.String("location", c.blob.Location()), zap.Error(err))
		}
		return
	}

	entries, dropped, err := decodeSnapshot(c.codec, data)
	if err != nil {
		c.logger.Warn("Cache snapshot is unparsable, starting cold",
			zap.String("location", c.blob.Location()), zap.Error(err))
		return
	}
	for _, d := range dropped {
		c.logger.Warn("Dropping malformed cache record", zap.String("key", d.Key), zap.String("reason", d.Reason))
	}

	c.entries = entries
	c.filter.Rebuild(keys(entries))
	c.logger.Info("Cache snapshot loaded",
		zap.String("location", c.blob.Location()),
		zap.Int("entries", len(entries)),
		zap.Int("dropped", len(dropped)))
}

// Lookup returns the feature vector cached for url if it is still within the
// expiration window. An expired entry is deleted and the snapshot rewritten.
// A miss is reported through found, never through err; err is only set when
// rewriting the snapshot after an expiry failed.
func (c *Cache) Lookup(ctx context.Context, url string) (models.FeatureVector, bool, error) {
	ctx, span := c.tracer.Start(ctx, "Cache.Lookup", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	if url == "" {
		return nil, false, ErrEmptyKey
	}

	c.mu.RLock()
	if !c.filter.Test(url) {
		c.mu.RUnlock()
		c.logger.Debug("Bloom filter negative for key", zap.String("key", url))
		c.recordMiss(span, "absent")
		return nil, false, nil
	}
	entry, ok := c.entries[url]
	c.mu.RUnlock()

	if !ok {
		c.recordMiss(span, "absent")
		return nil, false, nil
	}

	if !entry.IsExpired(c.clock(), c.window) {
		c.recordHit(span, url, entry)
		return entry.Value, true, nil
	}

	return c.expire(ctx, span, url)
}

// expire removes url under the write lock if it is still expired. A
// concurrent Store may have refreshed it in the meantime, in which case the
// fresh entry is served.
func (c *Cache) expire(ctx context.Context, span trace.Span, url string) (models.FeatureVector, bool, error) {
	c.mu.Lock()
	entry, ok := c.entries[url]
	if ok && !entry.IsExpired(c.clock(), c.window) {
		c.mu.Unlock()
		c.recordHit(span, url, entry)
		return entry.Value, true, nil
	}

	var err error
	if ok {
		delete(c.entries, url)
		c.logger.Debug("Removed expired cache entry", zap.String("key", url))
		err = c.persistLocked(ctx)
	}
	c.mu.Unlock()

	c.recordMiss(span, "expired")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	return nil, false, err
}

// Store caches a normalised copy of value for url with the current time,
// rewrites the snapshot and then persists the metrics snapshot. The in-memory insert always takes
// effect; persistence failures are returned.
func (c *Cache) Store(ctx context.Context, url string, value models.FeatureVector) error {
	ctx, span := c.tracer.Start(ctx, "Cache.Store", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	if url == "" {
		return ErrEmptyKey
	}

	value = value.Normalized()

	c.mu.Lock()
	c.entries[url] = models.NewEntry(value, c.clock())
	c.filter.Add(url)
	err := c.persistLocked(ctx)
	c.mu.Unlock()

	if c.recorder != nil {
		err = multierr.Append(err, c.recorder.Persist(ctx))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
	}
	return err
}

// PurgeExpired removes every expired entry and rewrites the snapshot once if
// anything was removed. It returns the number of removed entries.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	ctx, span := c.tracer.Start(ctx, "Cache.PurgeExpired")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	removed := 0
	for url, entry := range c.entries {
		if entry.IsExpired(now, c.window) {
			delete(c.entries, url)
			removed++
		}
	}
	span.SetAttributes(attribute.Int("removed", removed))

	if removed == 0 {
		return 0, nil
	}

	c.filter.Rebuild(keys(c.entries))
	c.logger.Info("Purged expired cache entries", zap.Int("removed", removed), zap.Int("remaining", len(c.entries)))

	if err := c.persistLocked(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return removed, err
	}
	return removed, nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close retries the snapshot write if the last one failed.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	return c.persistLocked(ctx)
}

// persistLocked rewrites the snapshot; c.mu must be held for writing.
func (c *Cache) persistLocked(ctx context.Context) error {
	data, err := encodeSnapshot(c.codec, c.entries)
	if err != nil {
		c.dirty = true
		c.logger.Error("Failed to encode cache snapshot", zap.Error(err))
		return err
	}
	if err := c.blob.Save(ctx, data); err != nil {
		c.dirty = true
		c.logger.Warn("Failed to persist cache snapshot",
			zap.String("location", c.blob.Location()), zap.Error(err))
		return err
	}
	c.dirty = false
	return nil
}

func (c *Cache) recordHit(span trace.Span, url string, entry *models.Entry) {
	count := entry.IncrementAccess()
	span.SetAttributes(attribute.Bool("hit", true), attribute.Int64("access_count", count))
	c.logger.Debug("Cache hit", zap.String("key", url), zap.Int64("access_count", count))
	if c.recorder != nil {
		c.recorder.RecordHit(c.timeSaved)
	}
}

func (c *Cache) recordMiss(span trace.Span, reason string) {
	span.SetAttributes(attribute.Bool("hit", false), attribute.String("miss_reason", reason))
	if c.recorder != nil {
		c.recorder.RecordMiss()
	}
}

func keys(entries map[string]*models.Entry) []string {
	out := make([]string, 0, len(entries))
	for k := range entries {
		out = append(out, k)
	}
	return out
}
