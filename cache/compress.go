package cache

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/climaterisk-co/risk-cache/types"
)

const (
	CodecGzip   = "gzip"
	CodecBrotli = "brotli"
)

const (
	codecIDGzip   byte = 1
	codecIDBrotli byte = 2
)

func codecID(codec string) (byte, error) {
	switch codec {
	case CodecGzip:
		return codecIDGzip, nil
	case CodecBrotli:
		return codecIDBrotli, nil
	}
	return 0, types.Errorf(types.ErrCodecUnknown, "%s", codec)
}

func codecName(id byte) (string, error) {
	switch id {
	case codecIDGzip:
		return CodecGzip, nil
	case codecIDBrotli:
		return CodecBrotli, nil
	}
	return "", types.Errorf(types.ErrCodecUnknown, "id %d", id)
}

func newCompressor(codec string, level int, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case CodecGzip:
		if level < gzip.BestSpeed {
			level = gzip.DefaultCompression
		}
		if level > gzip.BestCompression {
			level = gzip.BestCompression
		}
		return gzip.NewWriterLevel(w, level)
	case CodecBrotli:
		if level < brotli.BestSpeed || level > brotli.BestCompression {
			level = brotli.DefaultCompression
		}
		return brotli.NewWriterLevel(w, level), nil
	}
	return nil, types.Errorf(types.ErrCodecUnknown, "%s", codec)
}

func newDecompressor(codec string, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case CodecGzip:
		return gzip.NewReader(r)
	case CodecBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	}
	return nil, types.Errorf(types.ErrCodecUnknown, "%s", codec)
}

func compressionOrDefault(cfg *types.CompressionConfig) *types.CompressionConfig {
	if cfg == nil || cfg.Codec == "" {
		return &types.CompressionConfig{Codec: CodecGzip, Level: 6}
	}
	return cfg
}
