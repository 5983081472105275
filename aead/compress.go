package aead

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultCompressionThreshold = 1024 // 1KB
	minCompressionSavings       = 0.10 // 10% minimum savings to use compression

	// maxDecompressedSize bounds decompression output (64MB).
	maxDecompressedSize = 64 * 1024 * 1024
)

// CompressionZstd is the only supported compression algorithm.
const CompressionZstd = "zstd"

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
	zstdErr     error
)

// initZstd initializes the shared zstd encoder and decoder once.
func initZstd() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecompressedSize))
		if zstdErr != nil {
			zstdEncoder.Close()
			zstdEncoder = nil
		}
	})
	return zstdEncoder, zstdDecoder, zstdErr
}

func compressZstd(data []byte) ([]byte, error) {
	encoder, _, err := initZstd()
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(data, nil), nil
}

func decompressZstd(data []byte) ([]byte, error) {
	_, decoder, err := initZstd()
	if err != nil {
		return nil, err
	}
	result, err := decoder.DecodeAll(data, nil)
	if err != nil || len(result) > maxDecompressedSize {
		return nil, ErrDecompressionFailed
	}
	return result, nil
}

// maybeCompress compresses data if it reaches the threshold and compression
// saves at least minCompressionSavings. Returns the data to seal and its flag.
func maybeCompress(data []byte, threshold int, disabled bool) ([]byte, byte) {
	if disabled || len(data) < threshold {
		return data, flagNoCompression
	}

	compressed, err := compressZstd(data)
	if err != nil {
		return data, flagNoCompression
	}

	savings := float64(len(data)-len(compressed)) / float64(len(data))
	if savings < minCompressionSavings {
		return data, flagNoCompression
	}
	return compressed, flagZstd
}

// decompress reverses maybeCompress based on the flag byte.
func decompress(data []byte, flag byte) ([]byte, error) {
	switch flag {
	case flagNoCompression:
		return data, nil
	case flagZstd:
		return decompressZstd(data)
	default:
		return nil, ErrInvalidFormat
	}
}
