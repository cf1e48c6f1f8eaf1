package types

import (
	"time"
)

// StorageType selects the backend and on-disk subdirectory for an entry.
type StorageType string

const (
	StorageRasterData  StorageType = "raster_data"
	StorageCalculation StorageType = "calculations"
	StorageFinalResult StorageType = "final_results"
)

func StorageTypes() []StorageType {
	return []StorageType{StorageRasterData, StorageCalculation, StorageFinalResult}
}

func (s StorageType) Valid() bool {
	switch s {
	case StorageRasterData, StorageCalculation, StorageFinalResult:
		return true
	}
	return false
}

// FileSignature captures the identity of an input file for key derivation.
type FileSignature struct {
	Path      string `json:"path"`
	ModTimeNS int64  `json:"mtime_ns"`
	SizeBytes int64  `json:"size_bytes"`
}

// Raster is the dense-array payload persisted by the raster backend.
// Data is stored row-major; Shape gives the dimension extents.
type Raster struct {
	Shape []int     `json:"shape"`
	Dtype string    `json:"dtype"`
	Data  []float64 `json:"data"`
}

func (r *Raster) Elements() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

type CacheEntry struct {
	Key       string                 `json:"key"`
	Value     interface{}            `json:"value"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// EntryInfo describes a persisted entry without loading its payload.
type EntryInfo struct {
	Key       string
	SizeBytes uint64
	ModTime   time.Time
}

type Statistics struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	SizeBytes     uint64 `json:"size_bytes"`
}

type TypeInfo struct {
	Entries   int    `json:"entries"`
	SizeBytes uint64 `json:"size_bytes"`
}

type CacheInfo struct {
	Enabled        bool                     `json:"enabled"`
	RootDir        string                   `json:"root_dir"`
	MaxCacheSizeGB float64                  `json:"max_cache_size_gb"`
	TotalSizeBytes uint64                   `json:"total_size_bytes"`
	PerType        map[StorageType]TypeInfo `json:"per_type"`
}

// Backend persists and retrieves entries for one storage type.
// Get returns ErrEntryNotFound for a plain miss and ErrEntryCorrupt-wrapped
// errors for unreadable files; callers degrade both to a miss.
type Backend interface {
	Get(key string) (*CacheEntry, error)
	Put(key string, entry *CacheEntry) error
	Delete(key string) error
	Keys() ([]string, error)
	Entries() ([]EntryInfo, error)
	TotalBytes() uint64
	Extension() string
}

// CacheManager is the library surface exposed to every other component.
// No method panics or returns an error for I/O-class failures; reads degrade
// to a miss and writes to "not cached".
type CacheManager interface {
	Get(key string, storageType StorageType) (interface{}, bool)
	GetEntry(key string, storageType StorageType) (*CacheEntry, bool)
	Set(key string, payload interface{}, storageType StorageType, metadata map[string]interface{}) bool
	Invalidate(pattern string, storageType StorageType) int
	ClearAll() int
	CleanupOlderThan(maxAge time.Duration) int
	TotalSizeBytes() uint64
	StatsSnapshot() Statistics
	Info() *CacheInfo
	Enabled() bool
}
