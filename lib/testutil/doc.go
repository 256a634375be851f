// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets, whose paths are limited to 108 bytes; t.TempDir() paths can
// exceed that.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so a hung server fails the test instead of hanging it.
//
// All helpers call t.Fatalf on failure.
package testutil
