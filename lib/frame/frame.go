// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// HeaderLength is the fixed size of a frame header: a 4-byte opcode
// followed by a 4-byte payload length.
const HeaderLength = 8

// Opcode is the message type tag carried in the frame header.
type Opcode uint32

// Opcodes defined by the RPC protocol. The server only ever sends
// OpcodeFrame; the others are named so inbound frames log readably.
const (
	OpcodeHandshake Opcode = 0
	OpcodeFrame     Opcode = 1
	OpcodeClose     Opcode = 2
	OpcodePing      Opcode = 3
	OpcodePong      Opcode = 4
)

// String returns the protocol name of the opcode.
func (o Opcode) String() string {
	switch o {
	case OpcodeHandshake:
		return "handshake"
	case OpcodeFrame:
		return "frame"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(o))
	}
}

// Header is a decoded frame header.
type Header struct {
	Opcode Opcode
	Length uint32
}

// Frame is one complete protocol message.
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// Encode returns the wire form of a frame: the 8-byte header with
// length set to len(payload), followed by payload.
func Encode(opcode Opcode, payload []byte) []byte {
	buffer := make([]byte, HeaderLength+len(payload))
	binary.LittleEndian.PutUint32(buffer[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(buffer[4:8], uint32(len(payload)))
	copy(buffer[HeaderLength:], payload)
	return buffer
}

// WriteFrame writes a complete frame to w in a single Write call so
// that message-mode pipes deliver it as one message.
func WriteFrame(w io.Writer, opcode Opcode, payload []byte) error {
	if _, err := w.Write(Encode(opcode, payload)); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadHeader reads exactly HeaderLength bytes from r and decodes them.
// Returns a *FramingError if the stream ends or fails first.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [HeaderLength]byte
	read, err := io.ReadFull(r, raw[:])
	if err != nil {
		return Header{}, &FramingError{Stage: StageHeader, Want: HeaderLength, Got: read, Err: err}
	}
	return Header{
		Opcode: Opcode(binary.LittleEndian.Uint32(raw[0:4])),
		Length: binary.LittleEndian.Uint32(raw[4:8]),
	}, nil
}

// payloadChunk caps the buffer reserved up front for a payload. The
// declared length comes from the peer, so memory grows with the bytes
// that actually arrive rather than with the header's claim.
const payloadChunk = 64 << 10

// ReadPayload reads exactly length bytes from r. Returns a
// *FramingError on a short read.
func ReadPayload(r io.Reader, length uint32) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	var buffer bytes.Buffer
	buffer.Grow(int(min(length, payloadChunk)))
	read, err := io.CopyN(&buffer, r, int64(length))
	if err != nil {
		if errors.Is(err, io.EOF) && read > 0 {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FramingError{Stage: StagePayload, Want: int(length), Got: int(read), Err: err}
	}
	return buffer.Bytes(), nil
}

// ReadFrame reads one header and its declared payload from r.
func ReadFrame(r io.Reader) (Frame, error) {
	header, err := ReadHeader(r)
	if err != nil {
		return Frame{}, err
	}
	payload, err := ReadPayload(r, header.Length)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Opcode: header.Opcode, Payload: payload}, nil
}

// errInvalidUTF8 is the cause reported when a payload is not UTF-8.
var errInvalidUTF8 = errors.New("payload is not valid UTF-8")

// DecodeJSON validates that payload is UTF-8 encoded JSON text and
// returns it unchanged as a raw JSON value. Returns a *ProtocolError
// otherwise.
func DecodeJSON(payload []byte) (json.RawMessage, error) {
	if !utf8.Valid(payload) {
		return nil, &ProtocolError{Err: errInvalidUTF8}
	}
	var probe json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, &ProtocolError{Err: err}
	}
	return json.RawMessage(payload), nil
}
