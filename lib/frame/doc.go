// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the length-prefixed framing used on the
// local RPC channel.
//
// Every message in both directions is an 8-byte header followed by a
// payload:
//
//	[opcode: uint32 little-endian][length: uint32 little-endian][payload]
//
// The payload is UTF-8 JSON text. The channel itself carries no message
// boundaries, so readers pull exactly 8 header bytes, then exactly
// length payload bytes, before interpreting anything. A short read at
// either stage is a [FramingError]; a complete payload that is not
// valid UTF-8 JSON is a [ProtocolError].
//
// There is no magic number, checksum, or compression, and no upper
// bound on the payload length beyond what the transport delivers.
package frame
