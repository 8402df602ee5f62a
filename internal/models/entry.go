package models

import (
	"time"

	"go.uber.org/atomic"
)

// FeatureVector is the opaque feature payload produced by the extraction
// pipeline. The cache only normalises its numbers, see Normalized.
type FeatureVector map[string]any

// Normalized returns a copy of v in which every number, nested ones included,
// is a float64. A vector read back from a JSON snapshot has that form, so a
// normalised vector looks the same before and after a restart.
func (v FeatureVector) Normalized() FeatureVector {
	out := make(FeatureVector, len(v))
	for k, val := range v {
		out[k] = normalizeValue(val)
	}
	return out
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	case map[string]any:
		return map[string]any(FeatureVector(n).Normalized())
	case FeatureVector:
		return map[string]any(n.Normalized())
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}

// Entry represents a cached feature vector for one URL.
type Entry struct {
	Value       FeatureVector
	CreatedAt   time.Time
	AccessCount *atomic.Int64
}

// NewEntry creates a new Entry.
func NewEntry(value FeatureVector, createdAt time.Time) *Entry {
	return &Entry{
		Value:       value,
		CreatedAt:   createdAt,
		AccessCount: atomic.NewInt64(0),
	}
}

// IsExpired reports whether the entry is older than window at now.
// An entry exactly window old is still live.
func (e *Entry) IsExpired(now time.Time, window time.Duration) bool {
	return now.Sub(e.CreatedAt) > window
}

// IncrementAccess counts a cache hit served from this entry.
func (e *Entry) IncrementAccess() int64 {
	return e.AccessCount.Inc()
}
