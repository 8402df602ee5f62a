package limited

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// ErrRejected is returned when ristretto's admission policy drops a write.
var ErrRejected = errors.New("cache write rejected")

// Store defines the interface for the bounded lookup store.
type Store interface {
	Set(ctx context.Context, key string, e *entry) error
	Get(ctx context.Context, key string) (*entry, bool)
	Flush(ctx context.Context)
	Close()
}

// entry wraps a cached value with its own deadline so the clock used for
// expiry can be swapped in tests; ristretto's TTL is only a backstop.
type entry struct {
	value     any
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// RistrettoStore implements Store using Ristretto.
type RistrettoStore struct {
	cache  *ristretto.Cache
	logger *zap.Logger
	clock  func() time.Time
}

// NewRistrettoStore creates a RistrettoStore holding at most maxItems
// entries of cost one.
func NewRistrettoStore(maxItems uint64, clock func() time.Time, logger *zap.Logger) (*RistrettoStore, error) {
	if maxItems == 0 {
		maxItems = 1
	}
	numCounters := int64(math.Min(float64(10*maxItems), float64(math.MaxInt64)))
	maxCost := int64(math.Min(float64(maxItems), float64(math.MaxInt64)))

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
		// Every entry costs exactly one slot.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &RistrettoStore{cache: c, logger: logger, clock: clock}, nil
}

// Set sets a cache entry.
func (s *RistrettoStore) Set(ctx context.Context, key string, e *entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ttl := e.expiresAt.Sub(s.clock())
	if ttl <= 0 {
		return nil
	}
	if !s.cache.SetWithTTL(key, e, 1, ttl) {
		s.logger.Debug("Ristretto dropped lookup entry", zap.String("key", key))
		return ErrRejected
	}
	// Make the write visible to the next Get.
	s.cache.Wait()
	return nil
}

// Get retrieves a live cache entry.
func (s *RistrettoStore) Get(ctx context.Context, key string) (*entry, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}

	value, found := s.cache.Get(key)
	if !found {
		return nil, false
	}
	e, ok := value.(*entry)
	if !ok {
		s.logger.Error("Invalid lookup entry type", zap.String("key", key))
		return nil, false
	}
	if e.expired(s.clock()) {
		s.cache.Del(key)
		return nil, false
	}
	return e, true
}

// Flush clears the entire cache.
func (s *RistrettoStore) Flush(_ context.Context) {
	s.cache.Clear()
}

// Close closes the cache.
func (s *RistrettoStore) Close() {
	s.cache.Close()
}
