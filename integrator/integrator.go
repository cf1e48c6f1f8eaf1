// Package integrator is the process-wide façade over the cache: it owns the
// manager lifecycle, hands out wrappers idempotently and exposes the
// operational surface consumed by CLI tooling.
package integrator

import (
	"reflect"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/climaterisk-co/risk-cache/cache"
	"github.com/climaterisk-co/risk-cache/types"
	"github.com/climaterisk-co/risk-cache/wrapper"
)

type Integrator struct {
	config *types.CacheConfig
	logger types.Logger

	mu      sync.Mutex
	manager types.CacheManager
	wrapped map[uintptr]interface{}
}

func New(config *types.CacheConfig, logger types.Logger) (*Integrator, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}
	if logger == nil {
		return nil, types.Errorf(types.ErrConfigSectionMissing, "logger")
	}

	return &Integrator{
		config:  config,
		logger:  logger,
		wrapped: make(map[uintptr]interface{}),
	}, nil
}

// instanceKey reduces an instance to its pointer identity. Only pointer-like
// instances can be tracked: identity is what makes EnableFor idempotent, and
// a value-typed instance has no stable identity to key on.
func instanceKey(instance wrapper.CacheableInputs) (uintptr, error) {
	v := reflect.ValueOf(instance)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return v.Pointer(), nil
	}
	return 0, types.Errorf(types.ErrInstanceNotPointer, "got %T", instance)
}

// Manager returns the shared cache manager, constructing it on first use.
// When auto cleanup is configured, one age-based pass runs at construction.
func (i *Integrator) Manager() (types.CacheManager, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.managerLocked()
}

func (i *Integrator) managerLocked() (types.CacheManager, error) {
	if i.manager != nil {
		return i.manager, nil
	}

	manager, err := cache.New(i.config, i.logger)
	if err != nil {
		return nil, types.WrapError(err, "failed to construct cache manager")
	}
	i.manager = manager

	if i.config.Enabled && i.config.AutoCleanup && i.config.MaxAgeDays > 0 {
		maxAge := time.Duration(i.config.MaxAgeDays) * 24 * time.Hour
		removed := manager.CleanupOlderThan(maxAge)
		i.logger.Info("Startup cache cleanup completed",
			zap.Int("max_age_days", i.config.MaxAgeDays),
			zap.Int("removed", removed))
	}

	return i.manager, nil
}

// EnableFor wraps instance under logicalName, building the wrapped value via
// build. It is idempotent per instance identity: asking twice for the same
// instance (the same pointer, not an equal value) returns the wrapped value
// built the first time. Value-typed instances are rejected with
// ErrInstanceNotPointer.
func (i *Integrator) EnableFor(instance wrapper.CacheableInputs, logicalName string, build func(*wrapper.Wrapper) interface{}) (interface{}, error) {
	key, err := instanceKey(instance)
	if err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if existing, ok := i.wrapped[key]; ok {
		return existing, nil
	}

	manager, err := i.managerLocked()
	if err != nil {
		return nil, err
	}

	wrapped := build(wrapper.New(manager, logicalName, instance, i.logger))
	i.wrapped[key] = wrapped

	i.logger.Debug("Caching enabled for instance",
		zap.String("logical_name", logicalName))

	return wrapped, nil
}

func (i *Integrator) PrintStatistics() {
	manager, err := i.Manager()
	if err != nil {
		i.logger.ErrorWithErrStack("Cannot report cache statistics", err)
		return
	}

	stats := manager.StatsSnapshot()
	total := stats.Hits + stats.Misses

	hitRate := 0.0
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}

	i.logger.Info("Cache statistics",
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Uint64("invalidations", stats.Invalidations),
		zap.Float64("hit_rate", hitRate),
		zap.String("size", humanize.IBytes(stats.SizeBytes)))
}

func (i *Integrator) Cleanup(maxAge time.Duration) int {
	manager, err := i.Manager()
	if err != nil {
		i.logger.ErrorWithErrStack("Cannot run cache cleanup", err)
		return 0
	}
	return manager.CleanupOlderThan(maxAge)
}

// Clear removes every entry of the given storage type, or everything when
// storageType is empty.
func (i *Integrator) Clear(storageType types.StorageType) int {
	manager, err := i.Manager()
	if err != nil {
		i.logger.ErrorWithErrStack("Cannot clear cache", err)
		return 0
	}

	if storageType == "" {
		return manager.ClearAll()
	}
	return manager.Invalidate("", storageType)
}

func (i *Integrator) Invalidate(pattern string, storageType types.StorageType) int {
	manager, err := i.Manager()
	if err != nil {
		i.logger.ErrorWithErrStack("Cannot invalidate cache entries", err)
		return 0
	}
	return manager.Invalidate(pattern, storageType)
}

func (i *Integrator) Info() (*types.CacheInfo, error) {
	manager, err := i.Manager()
	if err != nil {
		return nil, err
	}
	return manager.Info(), nil
}

var (
	defaultMu         sync.Mutex
	defaultIntegrator *Integrator
)

// Default returns the process-wide integrator, constructing it from config on
// the first call. It exists as an explicit opt-in for callers that want one
// shared cache without threading a handle through every component; later
// calls ignore their arguments and return the first instance.
func Default(config *types.CacheConfig, logger types.Logger) (*Integrator, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultIntegrator != nil {
		return defaultIntegrator, nil
	}

	integrator, err := New(config, logger)
	if err != nil {
		return nil, err
	}

	defaultIntegrator = integrator
	return defaultIntegrator, nil
}
