// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how rotated segments are stored.
type Compression string

const (
	// CompressionNone leaves rotated segments as written.
	CompressionNone Compression = "none"

	// CompressionLZ4 stores segments in the LZ4 frame format. Fast,
	// modest ratio.
	CompressionLZ4 Compression = "lz4"

	// CompressionZstd stores segments as zstd streams. Better ratio
	// for JSON text at a higher CPU cost.
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name. The empty string means
// CompressionNone.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown audit compression %q (want none, lz4, or zstd)", name)
	}
}

// suffix is the file name suffix appended to compressed segments.
func (c Compression) suffix() string {
	switch c {
	case CompressionLZ4:
		return ".lz4"
	case CompressionZstd:
		return ".zst"
	default:
		return ""
	}
}

// compressionForPath infers the compression of a segment from its
// file name.
func compressionForPath(path string) Compression {
	switch {
	case strings.HasSuffix(path, ".lz4"):
		return CompressionLZ4
	case strings.HasSuffix(path, ".zst"):
		return CompressionZstd
	default:
		return CompressionNone
	}
}

// compressFile writes a compressed copy of source next to it and
// removes the original. Returns the path of the compressed file.
func compressFile(source string, compression Compression) (string, error) {
	if compression == CompressionNone {
		return source, nil
	}

	input, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("opening segment for compression: %w", err)
	}
	defer input.Close()

	destination := source + compression.suffix()
	output, err := os.OpenFile(destination, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating compressed segment: %w", err)
	}

	if err := copyCompressed(output, input, compression); err != nil {
		output.Close()
		os.Remove(destination)
		return "", err
	}
	if err := output.Close(); err != nil {
		os.Remove(destination)
		return "", fmt.Errorf("closing compressed segment: %w", err)
	}
	if err := os.Remove(source); err != nil {
		return "", fmt.Errorf("removing uncompressed segment: %w", err)
	}
	return destination, nil
}

func copyCompressed(output io.Writer, input io.Reader, compression Compression) error {
	switch compression {
	case CompressionLZ4:
		writer := lz4.NewWriter(output)
		if _, err := io.Copy(writer, input); err != nil {
			return fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("lz4 compress: %w", err)
		}
		return nil

	case CompressionZstd:
		writer, err := zstd.NewWriter(output, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("zstd compress: %w", err)
		}
		if _, err := io.Copy(writer, input); err != nil {
			writer.Close()
			return fmt.Errorf("zstd compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("zstd compress: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported compression %q", compression)
	}
}

// openDecompressed wraps file in a decompressing reader chosen from its
// name. The returned close function releases decoder resources; it
// does not close file.
func openDecompressed(path string, file io.Reader) (io.Reader, func(), error) {
	switch compressionForPath(path) {
	case CompressionLZ4:
		return lz4.NewReader(file), func() {}, nil
	case CompressionZstd:
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return decoder, decoder.Close, nil
	default:
		return file, func() {}, nil
	}
}
