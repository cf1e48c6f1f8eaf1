package wrapper_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/climaterisk-co/risk-cache/cache"
	"github.com/climaterisk-co/risk-cache/logger"
	"github.com/climaterisk-co/risk-cache/types"
	"github.com/climaterisk-co/risk-cache/wrapper"
)

// hazardModel stands in for a pipeline computation type. Its DEM path and
// resampling mode are the cache-relevant inputs.
type hazardModel struct {
	demPath    string
	resampling string
	loadCalls  int
	scoreCalls int
}

func (h *hazardModel) FileRefs() []string {
	return []string{h.demPath}
}

func (h *hazardModel) ConfigFingerprint() map[string]interface{} {
	return map[string]interface{}{"resampling": h.resampling}
}

func (h *hazardModel) LoadDEM(scale float64) (*types.Raster, error) {
	h.loadCalls++
	return &types.Raster{
		Shape: []int{2, 2},
		Dtype: "float64",
		Data:  []float64{1 * scale, 2 * scale, 3 * scale, 4 * scale},
	}, nil
}

func (h *hazardModel) FloodScore(region string) (map[string]interface{}, error) {
	h.scoreCalls++
	return map[string]interface{}{"region": region, "score": 0.82}, nil
}

func (h *hazardModel) Resampling() string {
	return h.resampling
}

// cachedHazardModel wraps hazardModel by composition: uncached methods and
// fields promote through the embedded value, cached ones route through Call.
type cachedHazardModel struct {
	*hazardModel
	w *wrapper.Wrapper
}

func (c *cachedHazardModel) LoadDEM(scale float64) (*types.Raster, error) {
	return wrapper.Call(c.w, "LoadDEM", types.StorageRasterData, scale, func() (*types.Raster, error) {
		return c.hazardModel.LoadDEM(scale)
	})
}

func (c *cachedHazardModel) FloodScore(region string) (map[string]interface{}, error) {
	return wrapper.Call(c.w, "FloodScore", types.StorageCalculation, region, func() (map[string]interface{}, error) {
		return c.hazardModel.FloodScore(region)
	})
}

func newTestManager(t *testing.T, enabled bool) (types.CacheManager, string) {
	t.Helper()
	root := t.TempDir()
	mgr, err := cache.New(&types.CacheConfig{Enabled: enabled, RootDir: root}, logger.NewNop())
	require.NoError(t, err)
	return mgr, root
}

func newTestModel(t *testing.T) *hazardModel {
	t.Helper()
	dir := t.TempDir()
	dem := filepath.Join(dir, "dem.tif")
	require.NoError(t, os.WriteFile(dem, []byte("elevation"), 0o644))
	return &hazardModel{demPath: dem, resampling: "bilinear"}
}

func TestCachedMethodComputesOnce(t *testing.T) {
	mgr, _ := newTestManager(t, true)
	model := newTestModel(t)
	wrapped := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard", model, logger.NewNop())}

	first, err := wrapped.LoadDEM(2.0)
	require.NoError(t, err)

	second, err := wrapped.LoadDEM(2.0)
	require.NoError(t, err)

	assert.Equal(t, 1, model.loadCalls, "second identical call must be served from cache")
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, first.Shape, second.Shape)
}

func TestDifferentArgumentsRecompute(t *testing.T) {
	mgr, _ := newTestManager(t, true)
	model := newTestModel(t)
	wrapped := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard", model, logger.NewNop())}

	_, err := wrapped.LoadDEM(1.0)
	require.NoError(t, err)
	_, err = wrapped.LoadDEM(2.0)
	require.NoError(t, err)

	assert.Equal(t, 2, model.loadCalls)
}

func TestInputFileChangeInvalidates(t *testing.T) {
	mgr, _ := newTestManager(t, true)
	model := newTestModel(t)
	wrapped := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard", model, logger.NewNop())}

	_, err := wrapped.LoadDEM(1.0)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(model.demPath, []byte("new elevation data"), 0o644))

	_, err = wrapped.LoadDEM(1.0)
	require.NoError(t, err)

	assert.Equal(t, 2, model.loadCalls, "changed input file must produce a new key")
}

func TestStructuredResultRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t, true)
	model := newTestModel(t)
	wrapped := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard", model, logger.NewNop())}

	first, err := wrapped.FloodScore("coastal")
	require.NoError(t, err)

	second, err := wrapped.FloodScore("coastal")
	require.NoError(t, err)

	assert.Equal(t, 1, model.scoreCalls)
	assert.Equal(t, first, second)
}

func TestDelegationTransparency(t *testing.T) {
	mgr, _ := newTestManager(t, true)
	model := newTestModel(t)
	wrapped := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard", model, logger.NewNop())}

	// Non-policy methods and fields reach the original unchanged.
	assert.Equal(t, "bilinear", wrapped.Resampling())
	assert.Equal(t, model.demPath, wrapped.demPath)
}

func TestDisabledCacheIsPassthrough(t *testing.T) {
	mgr, root := newTestManager(t, false)
	model := newTestModel(t)
	wrapped := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard", model, logger.NewNop())}

	for i := 0; i < 3; i++ {
		_, err := wrapped.LoadDEM(1.0)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, model.loadCalls)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "disabled cache must write nothing")
}

func TestLogicalNamesIsolateKeys(t *testing.T) {
	mgr, _ := newTestManager(t, true)
	model := newTestModel(t)

	a := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard_a", model, logger.NewNop())}
	b := &cachedHazardModel{hazardModel: model, w: wrapper.New(mgr, "hazard_b", model, logger.NewNop())}

	_, err := a.LoadDEM(1.0)
	require.NoError(t, err)
	_, err = b.LoadDEM(1.0)
	require.NoError(t, err)

	assert.Equal(t, 2, model.loadCalls, "same method under different logical names must not share keys")
}

func TestMethodDecoration(t *testing.T) {
	mgr, _ := newTestManager(t, true)

	calls := 0
	classify := func(depth float64) (string, error) {
		calls++
		if depth > 1.0 {
			return "severe", nil
		}
		return "minor", nil
	}

	cached := wrapper.NewMethod(mgr, "flood.classify", types.StorageCalculation, nil, classify, logger.NewNop())

	got, err := cached.Call(2.5)
	require.NoError(t, err)
	assert.Equal(t, "severe", got)

	got, err = cached.Call(2.5)
	require.NoError(t, err)
	assert.Equal(t, "severe", got)
	assert.Equal(t, 1, calls)

	got, err = cached.Call(0.5)
	require.NoError(t, err)
	assert.Equal(t, "minor", got)
	assert.Equal(t, 2, calls)
}

func TestMethodErrorNotCached(t *testing.T) {
	mgr, _ := newTestManager(t, true)

	calls := 0
	failing := func(n int) (int, error) {
		calls++
		return 0, assert.AnError
	}

	cached := wrapper.NewMethod(mgr, "flood.failing", types.StorageCalculation, nil, failing, logger.NewNop())

	_, err := cached.Call(1)
	require.Error(t, err)
	_, err = cached.Call(1)
	require.Error(t, err)

	assert.Equal(t, 2, calls, "failed computations must not be cached")
}
