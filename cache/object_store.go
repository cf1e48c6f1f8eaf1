package cache

import (
	"io"
	"time"

	"github.com/climaterisk-co/risk-cache/types"
	"github.com/climaterisk-co/risk-cache/utils"
)

// ObjectStore persists arbitrary structured payloads (.obj files) as
// compression-wrapped JSON behind a small self-describing header, so a file
// remains readable after the configured codec changes.
type ObjectStore struct {
	dirStore
	codec  string
	level  int
	logger types.Logger
}

const (
	objectExtension = ".obj"
	objectMagic     = "ROB1"
)

type objectEnvelope struct {
	Value     interface{}            `json:"value"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

func NewObjectStore(root string, compression *types.CompressionConfig, logger types.Logger) *ObjectStore {
	compression = compressionOrDefault(compression)
	return &ObjectStore{
		dirStore: newDirStore(root, objectExtension),
		codec:    compression.Codec,
		level:    compression.Level,
		logger:   logger,
	}
}

func (s *ObjectStore) Put(key string, entry *types.CacheEntry) error {
	envelope := objectEnvelope{
		Value:     entry.Value,
		Metadata:  entry.Metadata,
		CreatedAt: entry.CreatedAt,
	}

	payload, err := utils.Marshal(envelope)
	if err != nil {
		return types.Errorf(types.ErrSerializationFailed, "%v", err)
	}

	id, err := codecID(s.codec)
	if err != nil {
		return err
	}

	return s.writeAtomic(key, func(w io.Writer) error {
		if _, err := w.Write([]byte(objectMagic)); err != nil {
			return types.WrapError(err, "failed to write object magic")
		}
		if _, err := w.Write([]byte{id}); err != nil {
			return types.WrapError(err, "failed to write object codec")
		}

		cw, err := newCompressor(s.codec, s.level, w)
		if err != nil {
			return err
		}
		if _, err := cw.Write(payload); err != nil {
			cw.Close()
			return types.WrapError(err, "failed to compress object payload")
		}
		return types.WrapError(cw.Close(), "failed to flush object payload")
	})
}

func (s *ObjectStore) Get(key string) (*types.CacheEntry, error) {
	f, err := s.open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, len(objectMagic)+1)
	if _, err := io.ReadFull(f, head); err != nil || string(head[:len(objectMagic)]) != objectMagic {
		return nil, types.Errorf(types.ErrEntryCorrupt, "bad object magic for %s", key)
	}

	codec, err := codecName(head[len(objectMagic)])
	if err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "object codec for %s: %v", key, err)
	}

	dr, err := newDecompressor(codec, f)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	payload, err := io.ReadAll(dr)
	if err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "object decode for %s: %v", key, err)
	}

	var envelope objectEnvelope
	if err := utils.Unmarshal(payload, &envelope); err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "object decode for %s: %v", key, err)
	}

	return &types.CacheEntry{
		Key:       key,
		Value:     envelope.Value,
		Metadata:  envelope.Metadata,
		CreatedAt: envelope.CreatedAt,
	}, nil
}
