// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rpcready/rpcready/lib/clock"
	"github.com/rpcready/rpcready/lib/codec"
)

// Format is the on-disk encoding of a segment.
type Format string

const (
	// FormatJSONL writes one JSON object per line.
	FormatJSONL Format = "jsonl"

	// FormatCBOR writes a CBOR sequence (RFC 8742), one item per record.
	FormatCBOR Format = "cbor"
)

// ParseFormat parses a format name. The empty string means FormatJSONL.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatJSONL:
		return FormatJSONL, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("unknown audit format %q (want jsonl or cbor)", name)
	}
}

// rotationTimeLayout names rotated segments. Sorts lexically in time
// order.
const rotationTimeLayout = "20060102T150405.000000000Z"

// FileOptions configures a FileSink.
type FileOptions struct {
	// Path is the active segment. Its directory is created if missing.
	Path string

	Format Format

	// MaxBytes rotates the active segment once it reaches this size.
	// Zero disables rotation.
	MaxBytes int64

	// Compression applies to rotated segments only; the active
	// segment is always plain so it can be tailed.
	Compression Compression

	// Clock stamps records that arrive without a timestamp and names
	// rotated segments. Defaults to clock.Real().
	Clock clock.Clock

	// Logger receives rotation events. Defaults to slog.Default().
	Logger *slog.Logger
}

// FileSink appends records to a file. Safe for concurrent use.
type FileSink struct {
	options FileOptions

	mu         sync.Mutex
	file       *os.File
	size       int64
	lastDigest string
	closed     bool
}

// OpenFile opens or creates the active segment at options.Path. When
// the segment already has records the digest chain continues from the
// last one.
func OpenFile(options FileOptions) (*FileSink, error) {
	if options.Path == "" {
		return nil, errors.New("audit: file path is required")
	}
	if options.Format == "" {
		options.Format = FormatJSONL
	}
	if options.Compression == "" {
		options.Compression = CompressionNone
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(options.Path), 0o755); err != nil {
		return nil, fmt.Errorf("audit: creating directory for %s: %w", options.Path, err)
	}

	sink := &FileSink{options: options}

	existing, err := ReadFile(options.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("audit: reading existing segment %s: %w", options.Path, err)
	case len(existing) > 0:
		sink.lastDigest = existing[len(existing)-1].Digest
	}

	if err := sink.openActive(); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *FileSink) openActive() error {
	file, err := os.OpenFile(s.options.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: opening %s: %w", s.options.Path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("audit: stat %s: %w", s.options.Path, err)
	}
	s.file = file
	s.size = info.Size()
	return nil
}

// Append stamps, digests, encodes, and writes record. The write is a
// single call so records never interleave.
func (s *FileSink) Append(record Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = s.options.Clock.Now()
	}
	record.Timestamp = record.Timestamp.UTC()

	var compacted bytes.Buffer
	if err := json.Compact(&compacted, record.Payload); err != nil {
		return fmt.Errorf("audit: payload is not JSON: %w", err)
	}
	record.Payload = compacted.Bytes()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("audit: sink is closed")
	}
	if s.file == nil {
		if err := s.openActive(); err != nil {
			return err
		}
	}

	digest, err := chainDigest(s.lastDigest, record)
	if err != nil {
		return err
	}
	record.Digest = digest

	encoded, err := encodeRecord(s.options.Format, record)
	if err != nil {
		return err
	}
	written, err := s.file.Write(encoded)
	s.size += int64(written)
	if err != nil {
		return fmt.Errorf("audit: writing record: %w", err)
	}
	s.lastDigest = digest

	if s.options.MaxBytes > 0 && s.size >= s.options.MaxBytes {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	return nil
}

// rotate closes the active segment, renames it with a timestamp,
// compresses it, and starts a fresh segment with a fresh chain. Called
// with mu held.
func (s *FileSink) rotate() error {
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("audit: closing segment for rotation: %w", err)
	}
	s.file = nil

	rotated := s.options.Path + "." + s.options.Clock.Now().UTC().Format(rotationTimeLayout)
	if err := os.Rename(s.options.Path, rotated); err != nil {
		// The segment was not moved, so its chain is still the one on
		// disk. Keep appending to it and try again on the next record.
		s.options.Logger.Warn("audit segment rotation failed",
			"segment", s.options.Path,
			"rotated", rotated,
			"error", err,
		)
		return s.openActive()
	}

	final, err := compressFile(rotated, s.options.Compression)
	if err != nil {
		// The uncompressed segment is still on disk; keep going.
		s.options.Logger.Warn("audit segment compression failed",
			"segment", rotated,
			"compression", string(s.options.Compression),
			"error", err,
		)
		final = rotated
	}
	s.options.Logger.Info("audit segment rotated", "segment", final)

	s.lastDigest = ""
	return s.openActive()
}

// Close flushes and closes the active segment.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// cborRecord is the CBOR wire shape of a Record. Timestamps are Unix
// nanoseconds so nothing is lost to CBOR's default second resolution.
type cborRecord struct {
	Timestamp int64     `cbor:"timestamp"`
	Direction Direction `cbor:"direction"`
	Session   string    `cbor:"session,omitempty"`
	Opcode    uint32    `cbor:"opcode"`
	Payload   []byte    `cbor:"payload"`
	Digest    string    `cbor:"digest,omitempty"`
}

func encodeRecord(format Format, record Record) ([]byte, error) {
	switch format {
	case FormatCBOR:
		encoded, err := codec.Marshal(cborRecord{
			Timestamp: record.Timestamp.UnixNano(),
			Direction: record.Direction,
			Session:   record.Session,
			Opcode:    record.Opcode,
			Payload:   record.Payload,
			Digest:    record.Digest,
		})
		if err != nil {
			return nil, fmt.Errorf("audit: encoding CBOR record: %w", err)
		}
		return encoded, nil
	default:
		// Payloads are stored as received; HTML escaping would change
		// the bytes the digest covers.
		var encoded bytes.Buffer
		encoder := json.NewEncoder(&encoded)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(record); err != nil {
			return nil, fmt.Errorf("audit: encoding JSON record: %w", err)
		}
		return encoded.Bytes(), nil
	}
}

// ReadFile decodes every record in a segment. The format is detected
// from the content and compression from the file name, so active and
// rotated segments are read the same way.
func ReadFile(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, release, err := openDecompressed(path, file)
	if err != nil {
		return nil, err
	}
	defer release()

	return Decode(reader)
}

// Decode reads records from r until EOF, detecting the format from
// the first byte.
func Decode(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("audit: reading segment: %w", err)
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '{' {
		return decodeJSONL(trimmed)
	}
	return decodeCBOR(data)
}

func decodeJSONL(data []byte) ([]Record, error) {
	var records []Record
	decoder := json.NewDecoder(bytes.NewReader(data))
	for {
		var record Record
		err := decoder.Decode(&record)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("audit: decoding JSON record %d: %w", len(records), err)
		}
		records = append(records, record)
	}
}

func decodeCBOR(data []byte) ([]Record, error) {
	var records []Record
	decoder := codec.NewDecoder(bytes.NewReader(data))
	for {
		var raw cborRecord
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("audit: decoding CBOR record %d: %w", len(records), err)
		}
		records = append(records, Record{
			Timestamp: time.Unix(0, raw.Timestamp).UTC(),
			Direction: raw.Direction,
			Session:   raw.Session,
			Opcode:    raw.Opcode,
			Payload:   raw.Payload,
			Digest:    raw.Digest,
		})
	}
}
