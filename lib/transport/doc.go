// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the named duplex channel the RPC server
// listens on: a Unix domain socket on Unix systems and a named pipe on
// Windows.
//
// The endpoint name (by default "discord-ipc-0") resolves to a path the
// same way desktop clients look for it: the first of XDG_RUNTIME_DIR,
// TMPDIR, TMP, TEMP, or /tmp on Unix, and \\.\pipe\ on Windows.
//
// [Transport.Listen] creates a fresh listening instance each time it is
// called. The server listens, accepts one client, and closes the
// instance before serving, so a single name is reused for successive
// connections the way a single pipe instance is.
package transport
