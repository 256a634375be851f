// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpcclient is the client side of the RPC endpoint: it dials,
// reads the READY event, and writes frames. The probe command and the
// server tests use it.
package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rpcready/rpcready/lib/frame"
	"github.com/rpcready/rpcready/lib/handshake"
	"github.com/rpcready/rpcready/lib/transport"
)

// Client is one connection to the endpoint. Not safe for concurrent
// reads or concurrent writes.
type Client struct {
	connection net.Conn
}

// Dial connects to the endpoint at path.
func Dial(ctx context.Context, path string, timeout time.Duration) (*Client, error) {
	connection, err := transport.Dial(ctx, path, timeout)
	if err != nil {
		return nil, err
	}
	return &Client{connection: connection}, nil
}

// New wraps an existing connection.
func New(connection net.Conn) *Client {
	return &Client{connection: connection}
}

// Conn returns the underlying connection.
func (c *Client) Conn() net.Conn { return c.connection }

// ReadFrame reads the next frame from the server.
func (c *Client) ReadFrame() (frame.Frame, error) {
	return frame.ReadFrame(c.connection)
}

// ReadReady reads the first frame and checks that it is a READY
// dispatch with opcode 1. The raw payload is returned alongside the
// decoded event.
func (c *Client) ReadReady() (handshake.ReadyEvent, []byte, error) {
	received, err := c.ReadFrame()
	if err != nil {
		return handshake.ReadyEvent{}, nil, fmt.Errorf("reading ready frame: %w", err)
	}
	if received.Opcode != frame.OpcodeFrame {
		return handshake.ReadyEvent{}, received.Payload, fmt.Errorf("ready frame has opcode %s, want %s", received.Opcode, frame.OpcodeFrame)
	}

	var event handshake.ReadyEvent
	if err := json.Unmarshal(received.Payload, &event); err != nil {
		return handshake.ReadyEvent{}, received.Payload, fmt.Errorf("decoding ready event: %w", err)
	}
	if event.Command != handshake.CommandDispatch || event.Event != handshake.EventReady {
		return event, received.Payload, fmt.Errorf("first event is %s/%s, want %s/%s",
			event.Command, event.Event, handshake.CommandDispatch, handshake.EventReady)
	}
	return event, received.Payload, nil
}

// Send writes payload as one frame.
func (c *Client) Send(opcode frame.Opcode, payload []byte) error {
	if err := frame.WriteFrame(c.connection, opcode, payload); err != nil {
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

// SendJSON marshals value and sends it with opcode 1.
func (c *Client) SendJSON(value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal frame payload: %w", err)
	}
	return c.Send(frame.OpcodeFrame, payload)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.connection.Close()
}
