package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/climaterisk-co/risk-cache/types"
)

type instrumentedCacheManager struct {
	impl types.CacheManager
	ops  *prometheus.CounterVec
	dur  *prometheus.HistogramVec
}

func newInstrumentedManager(impl types.CacheManager, config *types.MetricsConfig, registerer prometheus.Registerer) types.CacheManager {
	namespace := config.Namespace
	if namespace == "" {
		namespace = "risk_cache"
	}

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_operations_total",
		Help:      "Cache operations by operation and result.",
	}, []string{"operation", "result"})

	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cache_operation_duration_seconds",
		Help:      "Cache operation latency.",
		Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
	}, []string{"operation"})

	if registerer != nil {
		// Tolerate repeated construction within one process.
		if err := registerer.Register(ops); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				ops = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
		if err := registerer.Register(dur); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				dur = are.ExistingCollector.(*prometheus.HistogramVec)
			}
		}
	}

	return &instrumentedCacheManager{impl: impl, ops: ops, dur: dur}
}

func (icm *instrumentedCacheManager) Get(key string, storageType types.StorageType) (interface{}, bool) {
	start := time.Now()
	value, ok := icm.impl.Get(key, storageType)
	icm.record("get", hitOrMiss(ok), time.Since(start))
	return value, ok
}

func (icm *instrumentedCacheManager) GetEntry(key string, storageType types.StorageType) (*types.CacheEntry, bool) {
	start := time.Now()
	entry, ok := icm.impl.GetEntry(key, storageType)
	icm.record("get", hitOrMiss(ok), time.Since(start))
	return entry, ok
}

func (icm *instrumentedCacheManager) Set(key string, payload interface{}, storageType types.StorageType, metadata map[string]interface{}) bool {
	start := time.Now()
	stored := icm.impl.Set(key, payload, storageType, metadata)

	result := "stored"
	if !stored {
		result = "skipped"
	}
	icm.record("set", result, time.Since(start))

	return stored
}

func (icm *instrumentedCacheManager) Invalidate(pattern string, storageType types.StorageType) int {
	start := time.Now()
	count := icm.impl.Invalidate(pattern, storageType)
	icm.record("invalidate", "success", time.Since(start))
	return count
}

func (icm *instrumentedCacheManager) ClearAll() int {
	start := time.Now()
	count := icm.impl.ClearAll()
	icm.record("clear_all", "success", time.Since(start))
	return count
}

func (icm *instrumentedCacheManager) CleanupOlderThan(maxAge time.Duration) int {
	start := time.Now()
	count := icm.impl.CleanupOlderThan(maxAge)
	icm.record("cleanup", "success", time.Since(start))
	return count
}

func (icm *instrumentedCacheManager) TotalSizeBytes() uint64 {
	return icm.impl.TotalSizeBytes()
}

func (icm *instrumentedCacheManager) StatsSnapshot() types.Statistics {
	return icm.impl.StatsSnapshot()
}

func (icm *instrumentedCacheManager) Info() *types.CacheInfo {
	return icm.impl.Info()
}

func (icm *instrumentedCacheManager) Enabled() bool {
	return icm.impl.Enabled()
}

func (icm *instrumentedCacheManager) record(operation, result string, duration time.Duration) {
	icm.ops.WithLabelValues(operation, result).Inc()
	icm.dur.WithLabelValues(operation).Observe(duration.Seconds())
}

func hitOrMiss(ok bool) string {
	if ok {
		return "hit"
	}
	return "miss"
}
