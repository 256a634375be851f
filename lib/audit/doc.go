// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records every message that crosses an RPC connection.
//
// A [Record] is one message in one direction: the READY event the
// server sent, or a frame the client sent after it. Records are
// append-only. A [Sink] must serialise concurrent Append calls because
// sessions may be served in parallel.
//
// [FileSink] writes records to a file as JSON lines or as a CBOR
// sequence. Each record carries a BLAKE3 digest chained from the
// previous record in the same file, so truncation or edits in the
// middle of a segment are detectable with [Verify]. When a size limit
// is configured the active file is rotated into a timestamped segment
// and, optionally, compressed with LZ4 or zstd. [ReadFile] reads any
// segment back regardless of format or compression.
package audit
