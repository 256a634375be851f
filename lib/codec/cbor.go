// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR settings for binary audit segments. A
// segment is a CBOR sequence (RFC 8742): records encoded back to back
// with no framing, read until EOF.
package codec

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var (
	// Core Deterministic Encoding (RFC 8949 §4.2): a record always
	// encodes to the same bytes.
	encMode = mustEncMode(cbor.CoreDetEncOptions())

	// Duplicate map keys are rejected so a segment cannot carry two
	// conflicting values for one field. Unknown fields are ignored so
	// older readers accept newer records.
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	})
)

func mustEncMode(options cbor.EncOptions) cbor.EncMode {
	mode, err := options.EncMode()
	if err != nil {
		panic(fmt.Sprintf("codec: invalid CBOR encoding options: %v", err))
	}
	return mode
}

func mustDecMode(options cbor.DecOptions) cbor.DecMode {
	mode, err := options.DecMode()
	if err != nil {
		panic(fmt.Sprintf("codec: invalid CBOR decoding options: %v", err))
	}
	return mode
}

// Marshal encodes one sequence item.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes a single item. Trailing bytes are an error; use a
// Decoder for sequences.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Decoder reads successive items of a sequence.
type Decoder = cbor.Decoder

// NewDecoder returns a Decoder over r. Decode returns io.EOF after the
// last complete item.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}
