package wrapper

import (
	"go.uber.org/zap"

	"github.com/climaterisk-co/risk-cache/cache"
	"github.com/climaterisk-co/risk-cache/types"
)

// Method is the single-function form of caching: the policy (operation id,
// storage type, optional inputs) is supplied at construction and the
// decorated function is called through Call. Useful for standalone functions
// where wrapping a whole type is unnecessary.
type Method[P any, R any] struct {
	manager     types.CacheManager
	keys        *cache.KeyGenerator
	operationID string
	storageType types.StorageType
	inputs      CacheableInputs
	fn          func(P) (R, error)
	logger      types.Logger
}

func NewMethod[P any, R any](
	manager types.CacheManager,
	operationID string,
	storageType types.StorageType,
	inputs CacheableInputs,
	fn func(P) (R, error),
	logger types.Logger,
) *Method[P, R] {
	return &Method[P, R]{
		manager:     manager,
		keys:        cache.NewKeyGenerator(),
		operationID: operationID,
		storageType: storageType,
		inputs:      inputs,
		fn:          fn,
		logger:      logger,
	}
}

func (m *Method[P, R]) Call(params P) (R, error) {
	if m.manager == nil || !m.manager.Enabled() {
		return m.fn(params)
	}

	var fileRefs []string
	var fingerprint map[string]interface{}
	if m.inputs != nil {
		fileRefs = m.inputs.FileRefs()
		fingerprint = m.inputs.ConfigFingerprint()
	}

	key := m.keys.Generate(m.operationID, fileRefs, params, fingerprint)

	if cached, ok := m.manager.Get(key, m.storageType); ok {
		if value, ok := decode[R](cached); ok {
			return value, nil
		}
		m.logger.Warn("Cached payload has unexpected shape, recomputing",
			zap.String("operation", m.operationID),
			zap.String("key", key))
	}

	result, err := m.fn(params)
	if err != nil {
		return result, err
	}

	m.manager.Set(key, result, m.storageType, nil)
	return result, nil
}
