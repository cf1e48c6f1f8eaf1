package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/climaterisk-co/risk-cache/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file "+configPath)
	}

	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.Errorf(types.ErrConfigParseFailed, "%v", err)
	}

	return config, l.Validate(config)
}

// Validate checks a config assembled in code rather than loaded from a file.
func (l *Loader) Validate(config *types.ServiceConfig) error {
	if config == nil {
		return types.ErrConfigIsNil
	}
	if config.Cache == nil {
		return types.Errorf(types.ErrConfigSectionMissing, "cache")
	}

	if err := l.validator.Struct(config); err != nil {
		return types.Errorf(types.ErrConfigValidateFailed, "%v", err)
	}

	return nil
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Cache: &types.CacheConfig{
			Enabled:        true,
			MaxCacheSizeGB: 10,
			AutoCleanup:    false,
			MaxAgeDays:     30,
			Compression: &types.CompressionConfig{
				Codec: "gzip",
				Level: 6,
			},
			Metrics: &types.MetricsConfig{
				Enabled:   false,
				Namespace: "risk_cache",
			},
		},
		Logger: &types.LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}
