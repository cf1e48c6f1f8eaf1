package cache

import (
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/climaterisk-co/risk-cache/types"
)

// DiskCache dispatches entries to a per-storage-type backend under a shared
// root directory. Raster data gets the chunked-array backend; calculations
// and final results get the object backend. All I/O failures degrade to a
// miss (reads) or "not cached" (writes) and are logged, never surfaced.
type DiskCache struct {
	config   *types.CacheConfig
	logger   types.Logger
	backends map[types.StorageType]types.Backend

	hits          uint64
	misses        uint64
	invalidations uint64
}

// New builds the cache manager described by config, wrapped in a
// metrics-recording decorator when metrics are enabled.
func New(config *types.CacheConfig, logger types.Logger) (types.CacheManager, error) {
	impl, err := NewDiskCache(config, logger)
	if err != nil {
		return nil, err
	}

	if config.Metrics != nil && config.Metrics.Enabled {
		return newInstrumentedManager(impl, config.Metrics, prometheus.DefaultRegisterer), nil
	}

	return impl, nil
}

func NewDiskCache(config *types.CacheConfig, logger types.Logger) (*DiskCache, error) {
	if config == nil {
		return nil, types.ErrConfigIsNil
	}
	if config.RootDir == "" {
		return nil, types.Errorf(types.ErrConfigSectionMissing, "cache.root_dir")
	}
	if logger == nil {
		return nil, types.Errorf(types.ErrConfigSectionMissing, "logger")
	}

	root := config.RootDir
	compression := config.Compression

	cache := &DiskCache{
		config: config,
		logger: logger,
		backends: map[types.StorageType]types.Backend{
			types.StorageRasterData:  NewRasterStore(filepath.Join(root, string(types.StorageRasterData)), compression, logger),
			types.StorageCalculation: NewObjectStore(filepath.Join(root, string(types.StorageCalculation)), compression, logger),
			types.StorageFinalResult: NewObjectStore(filepath.Join(root, string(types.StorageFinalResult)), compression, logger),
		},
	}

	logger.Debug("Disk cache initialized",
		zap.String("root", root),
		zap.Bool("enabled", config.Enabled))

	return cache, nil
}

func (c *DiskCache) Enabled() bool {
	return c.config.Enabled
}

func (c *DiskCache) Get(key string, storageType types.StorageType) (interface{}, bool) {
	entry, ok := c.GetEntry(key, storageType)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (c *DiskCache) GetEntry(key string, storageType types.StorageType) (*types.CacheEntry, bool) {
	if !c.config.Enabled {
		return nil, false
	}

	backend, ok := c.backends[storageType]
	if !ok {
		c.logger.Warn("Cache get for unknown storage type",
			zap.String("storage_type", string(storageType)))
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	entry, err := backend.Get(key)
	if err != nil {
		if !types.IsError(err, types.ErrEntryNotFound) {
			c.logger.Warn("Cache read failed, treating as miss",
				zap.String("key", key),
				zap.String("storage_type", string(storageType)),
				zap.Error(err))
		}
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	atomic.AddUint64(&c.hits, 1)
	return entry, true
}

func (c *DiskCache) Set(key string, payload interface{}, storageType types.StorageType, metadata map[string]interface{}) bool {
	if !c.config.Enabled {
		return false
	}

	if key == "" {
		c.logger.Warn("Cache set with empty key rejected")
		return false
	}

	backend, ok := c.backends[storageType]
	if !ok {
		c.logger.Warn("Cache set for unknown storage type",
			zap.String("storage_type", string(storageType)))
		return false
	}

	entry := &types.CacheEntry{
		Key:       key,
		Value:     payload,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	if err := backend.Put(key, entry); err != nil {
		c.logger.Warn("Cache write failed, result not cached",
			zap.String("key", key),
			zap.String("storage_type", string(storageType)),
			zap.Error(err))
		return false
	}

	return true
}

// Invalidate deletes entries whose key contains pattern within the given
// storage type, or across all types when storageType is empty. An empty
// pattern matches every entry. Single-file failures are logged and skipped;
// the returned count reflects entries actually removed.
func (c *DiskCache) Invalidate(pattern string, storageType types.StorageType) int {
	count := 0
	for st, backend := range c.selectBackends(storageType) {
		keys, err := backend.Keys()
		if err != nil {
			c.logger.Warn("Cache invalidation listing failed",
				zap.String("storage_type", string(st)),
				zap.Error(err))
			continue
		}

		for _, key := range keys {
			if pattern != "" && !strings.Contains(key, pattern) {
				continue
			}
			if err := backend.Delete(key); err != nil {
				if !types.IsError(err, types.ErrEntryNotFound) {
					c.logger.Warn("Cache invalidation delete failed",
						zap.String("key", key),
						zap.String("storage_type", string(st)),
						zap.Error(err))
				}
				continue
			}
			count++
		}
	}

	atomic.AddUint64(&c.invalidations, uint64(count))

	if count > 0 {
		c.logger.Info("Cache entries invalidated",
			zap.String("pattern", pattern),
			zap.String("storage_type", string(storageType)),
			zap.Int("count", count))
	}

	return count
}

func (c *DiskCache) ClearAll() int {
	var total uint64

	g := new(errgroup.Group)
	for st, backend := range c.backends {
		st, backend := st, backend
		g.Go(func() error {
			keys, err := backend.Keys()
			if err != nil {
				c.logger.Warn("Cache clear listing failed",
					zap.String("storage_type", string(st)),
					zap.Error(err))
				return nil
			}
			for _, key := range keys {
				if err := backend.Delete(key); err != nil {
					if !types.IsError(err, types.ErrEntryNotFound) {
						c.logger.Warn("Cache clear delete failed",
							zap.String("key", key),
							zap.String("storage_type", string(st)),
							zap.Error(err))
					}
					continue
				}
				atomic.AddUint64(&total, 1)
			}
			return nil
		})
	}
	g.Wait()

	atomic.AddUint64(&c.invalidations, total)

	c.logger.Info("Cache cleared", zap.Uint64("count", total))
	return int(total)
}

// CleanupOlderThan removes entries last modified before now-maxAge from every
// backend, leaving newer entries untouched.
func (c *DiskCache) CleanupOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	var total uint64

	g := new(errgroup.Group)
	for st, backend := range c.backends {
		st, backend := st, backend
		g.Go(func() error {
			infos, err := backend.Entries()
			if err != nil {
				c.logger.Warn("Cache cleanup listing failed",
					zap.String("storage_type", string(st)),
					zap.Error(err))
				return nil
			}
			for _, info := range infos {
				if !info.ModTime.Before(cutoff) {
					continue
				}
				if err := backend.Delete(info.Key); err != nil {
					if !types.IsError(err, types.ErrEntryNotFound) {
						c.logger.Warn("Cache cleanup delete failed",
							zap.String("key", info.Key),
							zap.String("storage_type", string(st)),
							zap.Error(err))
					}
					continue
				}
				atomic.AddUint64(&total, 1)
			}
			return nil
		})
	}
	g.Wait()

	atomic.AddUint64(&c.invalidations, total)

	if total > 0 {
		c.logger.Info("Cache cleanup completed",
			zap.Duration("max_age", maxAge),
			zap.Uint64("removed", total))
	}

	return int(total)
}

func (c *DiskCache) TotalSizeBytes() uint64 {
	var total uint64
	for _, backend := range c.backends {
		total += backend.TotalBytes()
	}
	return total
}

func (c *DiskCache) StatsSnapshot() types.Statistics {
	return types.Statistics{
		Hits:          atomic.LoadUint64(&c.hits),
		Misses:        atomic.LoadUint64(&c.misses),
		Invalidations: atomic.LoadUint64(&c.invalidations),
		SizeBytes:     c.TotalSizeBytes(),
	}
}

func (c *DiskCache) Info() *types.CacheInfo {
	info := &types.CacheInfo{
		Enabled:        c.config.Enabled,
		RootDir:        c.config.RootDir,
		MaxCacheSizeGB: c.config.MaxCacheSizeGB,
		PerType:        make(map[types.StorageType]types.TypeInfo, len(c.backends)),
	}

	for st, backend := range c.backends {
		entries, err := backend.Entries()
		if err != nil {
			c.logger.Warn("Cache info listing failed",
				zap.String("storage_type", string(st)),
				zap.Error(err))
			continue
		}

		var size uint64
		for _, e := range entries {
			size += e.SizeBytes
		}

		info.PerType[st] = types.TypeInfo{Entries: len(entries), SizeBytes: size}
		info.TotalSizeBytes += size
	}

	return info
}

func (c *DiskCache) selectBackends(storageType types.StorageType) map[types.StorageType]types.Backend {
	if storageType == "" {
		return c.backends
	}

	backend, ok := c.backends[storageType]
	if !ok {
		c.logger.Warn("Unknown storage type",
			zap.String("storage_type", string(storageType)))
		return nil
	}

	return map[types.StorageType]types.Backend{storageType: backend}
}
