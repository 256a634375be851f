// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type sample struct {
	Direction string `cbor:"direction"`
	Sequence  uint64 `cbor:"sequence"`
	Payload   []byte `cbor:"payload"`
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[string]any{"zeta": 1, "alpha": "a", "mid": []int{1, 2}}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding is not deterministic")
		}
	}
}

func TestSequence(t *testing.T) {
	records := []sample{
		{Direction: "sent", Sequence: 1, Payload: []byte(`{"evt":"READY"}`)},
		{Direction: "received", Sequence: 2, Payload: []byte(`{"cmd":"TEST"}`)},
	}
	var segment bytes.Buffer
	for _, record := range records {
		encoded, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		segment.Write(encoded)
	}

	decoder := NewDecoder(&segment)
	for index, want := range records {
		var got sample
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode[%d]: %v", index, err)
		}
		if got.Direction != want.Direction || got.Sequence != want.Sequence || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("record %d = %+v, want %+v", index, got, want)
		}
	}
	var extra sample
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("decode past end = %v, want io.EOF", err)
	}
}

func TestUnmarshalRejectsDuplicateKeys(t *testing.T) {
	// {"direction": "sent", "direction": "received"}
	duplicated := []byte{
		0xa2,
		0x69, 'd', 'i', 'r', 'e', 'c', 't', 'i', 'o', 'n',
		0x64, 's', 'e', 'n', 't',
		0x69, 'd', 'i', 'r', 'e', 'c', 't', 'i', 'o', 'n',
		0x68, 'r', 'e', 'c', 'e', 'i', 'v', 'e', 'd',
	}
	var decoded sample
	if err := Unmarshal(duplicated, &decoded); err == nil {
		t.Errorf("duplicate keys accepted, decoded %+v", decoded)
	}
}
