package urlguard

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeFlushesHostLookups(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	g, err := New(ctx,
		WithStoragePath(filepath.Join(dir, "url_cache.json")),
		WithMetricsPath(filepath.Join(dir, "cache_stats.json")),
		WithPurgeInterval(0),
	)
	require.NoError(t, err)
	defer g.Close(ctx)

	require.NotNil(t, g.lookups)
	require.NoError(t, g.lookups.Set(ctx, "dns:example.com", map[string]any{"has_mx_record": true}))
	_, ok := g.lookups.Get(ctx, "dns:example.com")
	require.True(t, ok)

	n, err := g.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok = g.lookups.Get(ctx, "dns:example.com")
	assert.False(t, ok)
}
