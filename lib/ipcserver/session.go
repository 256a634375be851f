// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package ipcserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/rpcready/rpcready/lib/audit"
	"github.com/rpcready/rpcready/lib/frame"
	"github.com/rpcready/rpcready/lib/handshake"
	"github.com/rpcready/rpcready/lib/netutil"
	"github.com/rpcready/rpcready/lib/transport"
)

// errSessionStopped ends a session at a read checkpoint after Stop.
var errSessionStopped = errors.New("server stopped")

// session is one accepted client. The connection is owned by the
// session and closed when it ends.
type session struct {
	server     *Server
	id         string
	connection net.Conn
	logger     *slog.Logger
}

// serveSession runs one client from handshake to close. Errors end
// the session and are logged; none reach the accept loop.
func (s *Server) serveSession(connection net.Conn) {
	id := uuid.NewString()
	logger := s.logger.With("session", id)
	if credentials, ok := transport.PeerCredentials(connection); ok {
		logger = logger.With("peer", credentials)
	}

	s.active.Add(1)
	s.options.Metrics.ConnectionAccepted()
	s.options.Metrics.SessionStarted()
	defer func() {
		connection.Close()
		s.active.Add(-1)
		s.options.Metrics.SessionEnded()
	}()

	logger.Info("client connected")

	current := &session{
		server:     s,
		id:         id,
		connection: connection,
		logger:     logger,
	}
	err := current.run()
	current.end(err)
}

// run sends the READY event and then reads until an error.
func (s *session) run() error {
	event := handshake.BuildReadyEvent(s.server.options.Identity.Identity())
	payload, err := handshake.Send(s.connection, event)
	if err != nil {
		return err
	}
	s.server.options.Metrics.HandshakeSent()
	s.audit(audit.DirectionSent, frame.OpcodeFrame, payload)
	s.logger.Info("ready event sent", "user_id", event.Data.User.ID)

	for {
		if !s.server.running.Load() {
			return errSessionStopped
		}
		if timeout := s.server.options.ReadTimeout; timeout > 0 {
			if err := s.connection.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return fmt.Errorf("setting read deadline: %w", err)
			}
		}

		received, err := frame.ReadFrame(s.connection)
		if err != nil {
			return err
		}
		if !s.server.running.Load() {
			return errSessionStopped
		}

		message, err := frame.DecodeJSON(received.Payload)
		if err != nil {
			return err
		}
		s.received(received.Opcode, message)
	}
}

// envelopeKeys are the RPC envelope fields copied into the log.
var envelopeKeys = []string{"cmd", "evt", "nonce"}

// received audits and logs one inbound message. The message is never
// acted on; cmd, evt, and nonce are pulled out for the log only.
func (s *session) received(opcode frame.Opcode, message json.RawMessage) {
	s.server.options.Metrics.FrameReceived(opcode.String())

	var compact bytes.Buffer
	if err := json.Compact(&compact, message); err != nil {
		compact.Reset()
		compact.Write(message)
	}
	attrs := []any{
		"opcode", opcode.String(),
		"payload", compact.String(),
	}

	fields := gjson.GetManyBytes(message, envelopeKeys...)
	for index, key := range envelopeKeys {
		if fields[index].Type == gjson.String {
			attrs = append(attrs, key, fields[index].String())
		}
	}
	s.logger.Info("received", attrs...)
	s.audit(audit.DirectionReceived, opcode, message)
}

// audit appends a record. A failing sink is logged and does not end
// the session.
func (s *session) audit(direction audit.Direction, opcode frame.Opcode, payload []byte) {
	sink := s.server.options.Audit
	if sink == nil {
		return
	}
	err := sink.Append(audit.Record{
		Timestamp: s.server.clock.Now(),
		Direction: direction,
		Session:   s.id,
		Opcode:    uint32(opcode),
		Payload:   payload,
	})
	if err != nil {
		s.logger.Warn("audit append failed", "direction", direction, "error", err)
	}
}

// end logs why the session finished. A client leaving between frames
// and a stop request are normal; everything else is a fault of this
// session only.
func (s *session) end(err error) {
	metrics := s.server.options.Metrics

	var (
		framingError  *frame.FramingError
		protocolError *frame.ProtocolError
		writeError    *handshake.WriteError
	)
	switch {
	case errors.Is(err, errSessionStopped):
		s.logger.Info("session ended by server stop")
	case errors.As(err, &framingError) && netutil.IsTimeout(err):
		metrics.SessionError("timeout")
		s.logger.Warn("session read timed out", "error", err)
	case errors.As(err, &framingError) && (framingError.AtBoundary() ||
		(framingError.Stage == frame.StageHeader && framingError.Got == 0 && netutil.IsExpectedCloseError(err))):
		s.logger.Info("client disconnected")
	case errors.As(err, &framingError):
		metrics.SessionError("framing")
		s.logger.Warn("session ended by framing error", "error", err)
	case errors.As(err, &protocolError):
		metrics.SessionError("protocol")
		s.logger.Warn("session ended by malformed payload", "error", err)
	case errors.As(err, &writeError):
		metrics.SessionError("write")
		s.logger.Warn("session ended by write failure", "error", err)
	default:
		metrics.SessionError("other")
		s.logger.Warn("session ended", "error", err)
	}
}
