package result

import (
	"github.com/bits-and-blooms/bloom/v3"

	"goflare.io/urlguard/internal/config"
)

// BloomFilter remembers every key ever stored since the last rebuild. A
// negative test proves the key is absent; a positive one must be confirmed
// against the map. Callers provide the locking.
type BloomFilter struct {
	settings config.BloomFilterConfig
	filter   *bloom.BloomFilter
}

// NewBloomFilter creates an empty filter sized from settings.
func NewBloomFilter(settings config.BloomFilterConfig) *BloomFilter {
	if settings.ExpectedItems == 0 {
		settings.ExpectedItems = 1000
	}
	if settings.FalsePositiveRate <= 0 || settings.FalsePositiveRate >= 1 {
		settings.FalsePositiveRate = 0.01
	}
	return &BloomFilter{
		settings: settings,
		filter:   bloom.NewWithEstimates(settings.ExpectedItems, settings.FalsePositiveRate),
	}
}

// Add adds a key to the bloom filter.
func (bf *BloomFilter) Add(key string) {
	bf.filter.AddString(key)
}

// Test checks if a key might be in the bloom filter.
func (bf *BloomFilter) Test(key string) bool {
	return bf.filter.TestString(key)
}

// Rebuild replaces the filter with one holding exactly keys, growing it when
// the key count outgrows the configured estimate.
func (bf *BloomFilter) Rebuild(keys []string) {
	n := bf.settings.ExpectedItems
	if want := uint(len(keys)) * 2; want > n {
		n = want
	}
	filter := bloom.NewWithEstimates(n, bf.settings.FalsePositiveRate)
	for _, k := range keys {
		filter.AddString(k)
	}
	bf.filter = filter
}
