// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package handshake builds and sends the READY dispatch that opens
// every RPC connection.
//
// The event is the first frame written on a freshly accepted channel,
// unconditionally: there is no capability negotiation and no version
// check against the client. Its identity fields are configuration, not
// derived from any account. [Identity] enumerates every field of the
// payload, [BuildReadyEvent] fills the fixed envelope around it, and
// [Send] frames it with opcode 1 and writes it.
//
// A [Provider] lets the caller swap the identity between connections
// (for example when a watched identity file changes) without touching
// connections that are already being served.
package handshake
