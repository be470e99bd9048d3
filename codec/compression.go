package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Supported compression algorithms.
const (
	CompressionNone    = "NONE"
	CompressionZstd    = "ZSTD"
	CompressionGzip    = "GZIP"
	CompressionDeflate = "DEFLATE"
	CompressionSnappy  = "SNAPPY"
	CompressionLZ4     = "LZ4"
)

// NormalizeCompression maps aliases onto the supported algorithm names.
func NormalizeCompression(compression string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(compression)) {
	case "", "NONE", "PASS_THROUGH":
		return CompressionNone, nil
	case "ZSTD", "ZSTANDARD":
		return CompressionZstd, nil
	case "GZIP":
		return CompressionGzip, nil
	case "DEFLATE", "ZLIB":
		return CompressionDeflate, nil
	case "SNAPPY":
		return CompressionSnappy, nil
	case "LZ4", "LZ4_FAST", "LZ4_HIGH":
		return CompressionLZ4, nil
	default:
		return "", fmt.Errorf("unsupported compression: %s", compression)
	}
}

// Compress encodes payload with the given algorithm. LZ4 produces a frame, not a raw block.
func Compress(payload []byte, compression string) ([]byte, error) {
	algorithm, err := NormalizeCompression(compression)
	if err != nil {
		return nil, err
	}
	switch algorithm {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer encoder.Close()
		return encoder.EncodeAll(payload, nil), nil
	case CompressionGzip:
		buf := &bytes.Buffer{}
		return writeThrough(buf, gzip.NewWriter(buf), payload)
	case CompressionDeflate:
		buf := &bytes.Buffer{}
		return writeThrough(buf, zlib.NewWriter(buf), payload)
	case CompressionSnappy:
		return snappy.Encode(nil, payload), nil
	case CompressionLZ4:
		buf := &bytes.Buffer{}
		return writeThrough(buf, lz4.NewWriter(buf), payload)
	default:
		return payload, nil
	}
}

func writeThrough(buf *bytes.Buffer, writer io.WriteCloser, payload []byte) ([]byte, error) {
	if _, err := writer.Write(payload); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(payload []byte, compression string) ([]byte, error) {
	algorithm, err := NormalizeCompression(compression)
	if err != nil {
		return nil, err
	}
	switch algorithm {
	case CompressionZstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return decoder.DecodeAll(payload, nil)
	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
	case CompressionDeflate:
		reader, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case CompressionSnappy:
		return snappy.Decode(nil, payload)
	default:
		return payload, nil
	}
}
