package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
	ErrConfigSectionMissing = errors.New("config section missing")
	ErrConfigIsNil          = errors.New("config is nil")
)

var (
	ErrCacheDisabled      = errors.New("cache is disabled")
	ErrCacheKeyEmpty      = errors.New("cache key empty")
	ErrEntryNotFound      = errors.New("cache entry not found")
	ErrEntryCorrupt       = errors.New("cache entry corrupt")
	ErrStorageTypeUnknown = errors.New("storage type unknown")
)

var (
	ErrInstanceNotPointer = errors.New("instance must be a pointer to enable caching")
)

var (
	ErrSerializationFailed = errors.New("payload serialization failed")
	ErrPayloadUnsupported  = errors.New("payload type unsupported by backend")
	ErrCodecUnknown        = errors.New("compression codec unknown")
)

var (
	ErrLogFileIsEmpty    = errors.New("log file is empty")
	ErrLoggerTypeUnknown = errors.New("logger type unknown")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
