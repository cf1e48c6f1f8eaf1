package cache

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/climaterisk-co/risk-cache/types"
	"github.com/climaterisk-co/risk-cache/utils"
)

// RasterStore persists dense float64 grids in a chunked, compressed container
// (.grid files): a magic tag, a JSON header carrying shape/dtype/chunk layout
// plus the metadata side-table, then one compressed little-endian block per
// chunk. Chunking keeps decompression buffers bounded for large grids.
type RasterStore struct {
	dirStore
	codec  string
	level  int
	logger types.Logger
}

const (
	rasterExtension  = ".grid"
	rasterMagic      = "RGC1"
	rasterChunkElems = 64 * 1024

	// Upper bound accepted from a file header; our writer never exceeds
	// rasterChunkElems, so anything past this is a corrupt or hostile file.
	rasterMaxChunkElems = 1 << 22
)

type gridHeader struct {
	Shape      []int                  `json:"shape"`
	Dtype      string                 `json:"dtype"`
	ChunkElems int                    `json:"chunk_elems"`
	Chunks     int                    `json:"chunks"`
	Codec      string                 `json:"codec"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

func NewRasterStore(root string, compression *types.CompressionConfig, logger types.Logger) *RasterStore {
	compression = compressionOrDefault(compression)
	return &RasterStore{
		dirStore: newDirStore(root, rasterExtension),
		codec:    compression.Codec,
		level:    compression.Level,
		logger:   logger,
	}
}

func (s *RasterStore) Put(key string, entry *types.CacheEntry) error {
	raster, err := asRaster(entry.Value)
	if err != nil {
		return err
	}

	header := gridHeader{
		Shape:      raster.Shape,
		Dtype:      raster.Dtype,
		ChunkElems: rasterChunkElems,
		Chunks:     chunkCount(len(raster.Data), rasterChunkElems),
		Codec:      s.codec,
		Metadata:   entry.Metadata,
		CreatedAt:  entry.CreatedAt,
	}

	headerBytes, err := utils.Marshal(header)
	if err != nil {
		return types.Errorf(types.ErrSerializationFailed, "grid header: %v", err)
	}

	return s.writeAtomic(key, func(w io.Writer) error {
		if _, err := w.Write([]byte(rasterMagic)); err != nil {
			return types.WrapError(err, "failed to write grid magic")
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(headerBytes))); err != nil {
			return types.WrapError(err, "failed to write grid header length")
		}
		if _, err := w.Write(headerBytes); err != nil {
			return types.WrapError(err, "failed to write grid header")
		}

		for start := 0; start < len(raster.Data); start += rasterChunkElems {
			end := start + rasterChunkElems
			if end > len(raster.Data) {
				end = len(raster.Data)
			}
			if err := s.writeChunk(w, raster.Data[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *RasterStore) writeChunk(w io.Writer, chunk []float64) error {
	raw := make([]byte, len(chunk)*8)
	for i, v := range chunk {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}

	var compressed bytes.Buffer
	cw, err := newCompressor(s.codec, s.level, &compressed)
	if err != nil {
		return err
	}
	if _, err := cw.Write(raw); err != nil {
		cw.Close()
		return types.WrapError(err, "failed to compress grid chunk")
	}
	if err := cw.Close(); err != nil {
		return types.WrapError(err, "failed to flush grid chunk")
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(compressed.Len())); err != nil {
		return types.WrapError(err, "failed to write grid chunk length")
	}
	if _, err := w.Write(compressed.Bytes()); err != nil {
		return types.WrapError(err, "failed to write grid chunk")
	}
	return nil
}

func (s *RasterStore) Get(key string) (*types.CacheEntry, error) {
	f, err := s.open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(rasterMagic))
	if _, err := io.ReadFull(f, magic); err != nil || string(magic) != rasterMagic {
		return nil, types.Errorf(types.ErrEntryCorrupt, "bad grid magic for %s", key)
	}

	var headerLen uint32
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "short grid header for %s", key)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "short grid header for %s", key)
	}

	var header gridHeader
	if err := utils.Unmarshal(headerBytes, &header); err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "grid header decode for %s: %v", key, err)
	}

	// A parseable header is still untrusted: bound the chunk layout before
	// allocating anything from it. Every chunk carries at least a 4-byte
	// length prefix, so the file size caps the plausible chunk count.
	fileInfo, err := f.Stat()
	if err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "stat %s: %v", key, err)
	}
	if header.ChunkElems <= 0 || header.ChunkElems > rasterMaxChunkElems ||
		header.Chunks < 0 || int64(header.Chunks) > fileInfo.Size()/4 {
		return nil, types.Errorf(types.ErrEntryCorrupt, "implausible grid layout for %s", key)
	}

	data := make([]float64, 0, header.Chunks*header.ChunkElems)
	for i := 0; i < header.Chunks; i++ {
		chunk, err := s.readChunk(f, header.Codec, key, header.ChunkElems)
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}

	return &types.CacheEntry{
		Key: key,
		Value: &types.Raster{
			Shape: header.Shape,
			Dtype: header.Dtype,
			Data:  data,
		},
		Metadata:  header.Metadata,
		CreatedAt: header.CreatedAt,
	}, nil
}

func (s *RasterStore) readChunk(r io.Reader, codec, key string, maxElems int) ([]float64, error) {
	var compressedLen uint32
	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "short grid chunk for %s", key)
	}

	lr := io.LimitReader(r, int64(compressedLen))
	dr, err := newDecompressor(codec, lr)
	if err != nil {
		return nil, err
	}
	defer dr.Close()

	// A chunk may not decompress past what the header declared.
	raw, err := io.ReadAll(io.LimitReader(dr, int64(maxElems)*8+1))
	if err != nil || len(raw)%8 != 0 || len(raw) > maxElems*8 {
		return nil, types.Errorf(types.ErrEntryCorrupt, "grid chunk decode for %s", key)
	}

	// Leave the reader positioned at the next chunk even if the
	// decompressor did not consume its full block.
	if _, err := io.Copy(io.Discard, lr); err != nil {
		return nil, types.Errorf(types.ErrEntryCorrupt, "grid chunk decode for %s", key)
	}

	chunk := make([]float64, len(raw)/8)
	for i := range chunk {
		chunk[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return chunk, nil
}

func asRaster(value interface{}) (*types.Raster, error) {
	switch v := value.(type) {
	case *types.Raster:
		if v == nil {
			return nil, types.Errorf(types.ErrPayloadUnsupported, "nil raster")
		}
		return v, nil
	case types.Raster:
		return &v, nil
	}
	return nil, types.Errorf(types.ErrPayloadUnsupported, "raster backend requires *types.Raster, got %T", value)
}

func chunkCount(elements, chunkElems int) int {
	if elements == 0 {
		return 0
	}
	return (elements + chunkElems - 1) / chunkElems
}
