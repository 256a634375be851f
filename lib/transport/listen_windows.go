// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package transport

import (
	"context"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeBufferSize matches the 512-byte in/out buffers desktop clients
// create the pipe with.
const pipeBufferSize = 512

// pipeTransport listens on a named pipe in message mode.
type pipeTransport struct {
	options Options
}

// New returns the platform transport for options.
func New(options Options) Transport {
	return &pipeTransport{options: options}
}

func (t *pipeTransport) Address() string { return t.options.Path }

// Listen creates a new pipe instance.
func (t *pipeTransport) Listen() (net.Listener, error) {
	listener, err := winio.ListenPipe(t.options.Path, &winio.PipeConfig{
		MessageMode:      true,
		InputBufferSize:  pipeBufferSize,
		OutputBufferSize: pipeBufferSize,
	})
	if err != nil {
		return nil, &TransportError{Op: "listen", Address: t.options.Path, Err: err}
	}
	return listener, nil
}

// Dial connects to the named pipe at path.
func Dial(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	connection, err := winio.DialPipeContext(ctx, path)
	if err != nil {
		return nil, &TransportError{Op: "dial", Address: path, Err: err}
	}
	return connection, nil
}
