package types

type ServiceConfig struct {
	Cache  *CacheConfig  `yaml:"cache" json:"cache" validate:"required"`
	Logger *LoggerConfig `yaml:"logger" json:"logger"`
}

type CacheConfig struct {
	Enabled        bool               `yaml:"enabled" json:"enabled"`
	RootDir        string             `yaml:"root_dir" json:"root_dir" validate:"required"`
	MaxCacheSizeGB float64            `yaml:"max_cache_size_gb" json:"max_cache_size_gb" validate:"gte=0"`
	AutoCleanup    bool               `yaml:"auto_cleanup" json:"auto_cleanup"`
	MaxAgeDays     int                `yaml:"max_age_days" json:"max_age_days" validate:"gte=0"`
	Compression    *CompressionConfig `yaml:"compression" json:"compression"`
	Metrics        *MetricsConfig     `yaml:"metrics" json:"metrics"`
}

type CompressionConfig struct {
	Codec string `yaml:"codec" json:"codec" validate:"oneof=gzip brotli"`
	Level int    `yaml:"level" json:"level" validate:"gte=0,lte=11"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}
