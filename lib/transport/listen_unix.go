// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// unixTransport listens on a Unix domain socket.
type unixTransport struct {
	options Options
}

// New returns the platform transport for options.
func New(options Options) Transport {
	return &unixTransport{options: options}
}

func (t *unixTransport) Address() string { return t.options.Path }

// Listen removes a stale socket left by a previous instance, binds a
// new one, and applies the configured permissions. The listener unlinks
// the socket file when closed.
func (t *unixTransport) Listen() (net.Listener, error) {
	path := t.options.Path
	if err := removeStaleSocket(path); err != nil {
		return nil, &TransportError{Op: "remove stale socket", Address: path, Err: err}
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, &TransportError{Op: "listen", Address: path, Err: err}
	}

	if t.options.Permissions != 0 {
		if err := os.Chmod(path, t.options.Permissions); err != nil {
			listener.Close()
			return nil, &TransportError{Op: "chmod", Address: path, Err: err}
		}
	}
	return listener, nil
}

// removeStaleSocket deletes path if it is a socket. Any other kind of
// file at the path is left alone and reported, so a misconfigured path
// cannot delete user data.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Dial connects to the endpoint at path.
func Dial(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	connection, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &TransportError{Op: "dial", Address: path, Err: err}
	}
	return connection, nil
}
