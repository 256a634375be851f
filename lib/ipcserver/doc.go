// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipcserver serves the READY handshake on a local RPC endpoint.
//
// A [Server] runs an accept loop over a [transport.Transport]. Every
// accept cycle binds a fresh listening instance, accepts exactly one
// client, and closes the instance before the client is served. Each
// client gets the READY event as its first frame; after that the
// session only reads: every inbound frame is decoded, audited, and
// logged, and nothing the client sends is acted on.
//
// Sessions are served one at a time by default. With
// [Options.Concurrent] each session runs on its own goroutine, bounded
// by [Options.MaxSessions].
//
// Stopping is cooperative. [Server.Stop] clears the run state and
// closes the listening instance so no further client is accepted, but
// sessions in progress are not interrupted: each one ends at its next
// read checkpoint, and a frame that finishes arriving after the stop
// is dropped without being processed.
package ipcserver
