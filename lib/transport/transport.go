// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"net"
	"os"
)

// DefaultName is the endpoint name desktop RPC clients try first.
const DefaultName = "discord-ipc-0"

// Transport creates listening instances on one named endpoint.
type Transport interface {
	// Listen binds a new listening instance. The caller owns the
	// returned listener and must close it.
	Listen() (net.Listener, error)

	// Address is the resolved endpoint path, for logging.
	Address() string
}

// Options configures the platform transport.
type Options struct {
	// Path is the endpoint path. Use Resolve to derive it from a name.
	Path string

	// Permissions is applied to the socket file after binding. Zero
	// leaves the umask-derived mode. Ignored on Windows.
	Permissions os.FileMode
}

// TransportError reports a failure to create, bind, or accept on the
// endpoint (name in use, permission denied, listener closed). The
// server logs it and retries the accept cycle.
type TransportError struct {
	Op      string
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Credentials identify the process on the other end of a connection.
type Credentials struct {
	PID int32
	UID uint32
	GID uint32
}

// LogValue groups the credentials under one log attribute.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("pid", int(c.PID)),
		slog.Any("uid", c.UID),
		slog.Any("gid", c.GID),
	)
}
