// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// Direction is which way a message travelled relative to the server.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Record is one audited message.
type Record struct {
	Timestamp time.Time       `json:"timestamp"`
	Direction Direction       `json:"direction"`
	Session   string          `json:"session,omitempty"`
	Opcode    uint32          `json:"opcode"`
	Payload   json.RawMessage `json:"payload"`

	// Digest is the hex BLAKE3 chain digest assigned by FileSink.
	// Empty for records that were never written to a file.
	Digest string `json:"digest,omitempty"`
}

// Sink accepts audit records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Append(record Record) error
	Close() error
}

// digestKey separates audit digests from any other BLAKE3 use. ASCII
// domain name, zero padded to 32 bytes.
var digestKey = [32]byte{
	'r', 'p', 'c', 'r', 'e', 'a', 'd', 'y', '.', 'a', 'u', 'd', 'i', 't', '.',
	'r', 'e', 'c', 'o', 'r', 'd',
}

// chainDigest computes the digest of record given the previous
// record's digest (empty for the first record of a segment).
func chainDigest(previous string, record Record) (string, error) {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		return "", fmt.Errorf("audit: creating keyed hasher: %w", err)
	}
	hasher.Write([]byte(previous))
	hasher.Write([]byte{0})
	hasher.Write([]byte(record.Timestamp.UTC().Format(time.RFC3339Nano)))
	hasher.Write([]byte{0})
	hasher.Write([]byte(record.Direction))
	hasher.Write([]byte{0})
	hasher.Write([]byte(record.Session))
	hasher.Write([]byte{0})
	fmt.Fprintf(hasher, "%d", record.Opcode)
	hasher.Write([]byte{0})
	hasher.Write(record.Payload)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify recomputes the digest chain over records, which must be the
// complete contents of one segment in order. Returns an error naming
// the first record whose digest does not match.
func Verify(records []Record) error {
	previous := ""
	for index, record := range records {
		want, err := chainDigest(previous, record)
		if err != nil {
			return err
		}
		if record.Digest != want {
			return fmt.Errorf("audit: record %d digest mismatch (have %q, want %q)", index, record.Digest, want)
		}
		previous = record.Digest
	}
	return nil
}
