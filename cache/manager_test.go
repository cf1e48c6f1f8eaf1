package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climaterisk-co/risk-cache/logger"
	"github.com/climaterisk-co/risk-cache/types"
)

func testConfig(root string, enabled bool) *types.CacheConfig {
	return &types.CacheConfig{
		Enabled:        enabled,
		RootDir:        root,
		MaxCacheSizeGB: 1,
	}
}

func newTestCache(t *testing.T, enabled bool) (*DiskCache, string) {
	t.Helper()
	root := t.TempDir()
	c, err := NewDiskCache(testConfig(root, enabled), logger.NewNop())
	require.NoError(t, err)
	return c, root
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	count := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func TestNewDiskCacheConfigErrors(t *testing.T) {
	_, err := NewDiskCache(nil, logger.NewNop())
	assert.ErrorIs(t, err, types.ErrConfigIsNil)

	_, err = NewDiskCache(&types.CacheConfig{Enabled: true}, logger.NewNop())
	assert.ErrorIs(t, err, types.ErrConfigSectionMissing)
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t, true)

	stored := c.Set("key1", map[string]interface{}{"flood_depth": 1.5}, types.StorageCalculation, map[string]interface{}{"units": "m"})
	require.True(t, stored)

	value, ok := c.Get("key1", types.StorageCalculation)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"flood_depth": 1.5}, value)

	entry, ok := c.GetEntry("key1", types.StorageCalculation)
	require.True(t, ok)
	assert.Equal(t, "m", entry.Metadata["units"])
}

func TestRasterDispatch(t *testing.T) {
	c, root := newTestCache(t, true)

	require.True(t, c.Set("rkey", testRaster(), types.StorageRasterData, nil))

	// Raster entries land in the raster subdirectory with the grid extension.
	_, err := os.Stat(filepath.Join(root, "raster_data", "rkey"+rasterExtension))
	require.NoError(t, err)

	value, ok := c.Get("rkey", types.StorageRasterData)
	require.True(t, ok)
	assert.Equal(t, testRaster().Data, value.(*types.Raster).Data)
}

func TestHitMissCounters(t *testing.T) {
	c, _ := newTestCache(t, true)

	_, ok := c.Get("nope", types.StorageCalculation)
	assert.False(t, ok)

	c.Set("k", "v", types.StorageCalculation, nil)
	_, ok = c.Get("k", types.StorageCalculation)
	assert.True(t, ok)

	stats := c.StatsSnapshot()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestSetSerializationFailureDegrades(t *testing.T) {
	c, _ := newTestCache(t, true)

	// Raster backend cannot persist a string payload; Set reports not-cached
	// instead of failing.
	assert.False(t, c.Set("k", "not a raster", types.StorageRasterData, nil))

	_, ok := c.Get("k", types.StorageRasterData)
	assert.False(t, ok)
}

func TestDisabledMode(t *testing.T) {
	c, root := newTestCache(t, false)

	assert.False(t, c.Enabled())
	assert.False(t, c.Set("k", "v", types.StorageCalculation, nil))

	_, ok := c.Get("k", types.StorageCalculation)
	assert.False(t, ok)

	assert.Zero(t, countFiles(t, root))

	stats := c.StatsSnapshot()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
}

func TestEmptyKeyRejected(t *testing.T) {
	c, _ := newTestCache(t, true)
	assert.False(t, c.Set("", "v", types.StorageCalculation, nil))
}

func TestUnknownStorageType(t *testing.T) {
	c, _ := newTestCache(t, true)

	assert.False(t, c.Set("k", "v", types.StorageType("bogus"), nil))
	_, ok := c.Get("k", types.StorageType("bogus"))
	assert.False(t, ok)
	assert.Zero(t, c.Invalidate("", types.StorageType("bogus")))
}

func TestPatternInvalidation(t *testing.T) {
	c, _ := newTestCache(t, true)

	require.True(t, c.Set("abc_foo_1", 1, types.StorageCalculation, nil))
	require.True(t, c.Set("abc_foo_2", 2, types.StorageFinalResult, nil))
	require.True(t, c.Set("abc_bar_3", 3, types.StorageCalculation, nil))

	removed := c.Invalidate("foo", "")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("abc_foo_1", types.StorageCalculation)
	assert.False(t, ok)
	_, ok = c.Get("abc_bar_3", types.StorageCalculation)
	assert.True(t, ok)
}

func TestInvalidationScopedToType(t *testing.T) {
	c, _ := newTestCache(t, true)

	require.True(t, c.Set("foo_calc", 1, types.StorageCalculation, nil))
	require.True(t, c.Set("foo_final", 2, types.StorageFinalResult, nil))

	removed := c.Invalidate("foo", types.StorageCalculation)
	assert.Equal(t, 1, removed)

	_, ok := c.Get("foo_final", types.StorageFinalResult)
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	c, _ := newTestCache(t, true)

	require.True(t, c.Set("k1", 1, types.StorageCalculation, nil))
	require.True(t, c.Set("k2", 2, types.StorageFinalResult, nil))
	require.True(t, c.Set("k3", testRaster(), types.StorageRasterData, nil))

	assert.Equal(t, 3, c.ClearAll())
	assert.Zero(t, c.TotalSizeBytes())

	stats := c.StatsSnapshot()
	assert.Equal(t, uint64(3), stats.Invalidations)
}

func TestCleanupOlderThan(t *testing.T) {
	c, root := newTestCache(t, true)

	require.True(t, c.Set("old", 1, types.StorageCalculation, nil))
	require.True(t, c.Set("fresh", 2, types.StorageCalculation, nil))

	oldTime := time.Now().Add(-48 * time.Hour)
	oldPath := filepath.Join(root, "calculations", "old"+objectExtension)
	require.NoError(t, os.Chtimes(oldPath, oldTime, oldTime))

	removed := c.CleanupOlderThan(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, ok := c.Get("old", types.StorageCalculation)
	assert.False(t, ok)
	_, ok = c.Get("fresh", types.StorageCalculation)
	assert.True(t, ok)
}

func TestTotalSizeAndInfo(t *testing.T) {
	c, _ := newTestCache(t, true)

	require.True(t, c.Set("k1", 1, types.StorageCalculation, nil))
	require.True(t, c.Set("k2", testRaster(), types.StorageRasterData, nil))

	assert.Positive(t, c.TotalSizeBytes())

	info := c.Info()
	assert.True(t, info.Enabled)
	assert.Equal(t, c.config.RootDir, info.RootDir)
	assert.Equal(t, 1, info.PerType[types.StorageCalculation].Entries)
	assert.Equal(t, 1, info.PerType[types.StorageRasterData].Entries)
	assert.Equal(t, 0, info.PerType[types.StorageFinalResult].Entries)
	assert.Equal(t, c.TotalSizeBytes(), info.TotalSizeBytes)
}

func TestHostileRasterEntryIsMiss(t *testing.T) {
	c, root := newTestCache(t, true)

	writeGridFile(t, filepath.Join(root, "raster_data"), "evil",
		`{"shape":[1],"dtype":"float64","chunk_elems":2147483647,"chunks":2147483647,"codec":"gzip"}`)

	assert.NotPanics(t, func() {
		_, ok := c.Get("evil", types.StorageRasterData)
		assert.False(t, ok)
	})

	assert.Equal(t, uint64(1), c.StatsSnapshot().Misses)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	c, root := newTestCache(t, true)

	require.True(t, c.Set("k", 1, types.StorageCalculation, nil))

	path := filepath.Join(root, "calculations", "k"+objectExtension)
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, ok := c.Get("k", types.StorageCalculation)
	assert.False(t, ok)

	stats := c.StatsSnapshot()
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestNewWithMetricsDecorator(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root, true)
	cfg.Metrics = &types.MetricsConfig{Enabled: true, Namespace: "risk_cache_test"}

	mgr, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	_, ok := mgr.(*DiskCache)
	assert.False(t, ok, "metrics-enabled manager should be decorated")

	assert.True(t, mgr.Set("k", "v", types.StorageCalculation, nil))
	_, hit := mgr.Get("k", types.StorageCalculation)
	assert.True(t, hit)
}
