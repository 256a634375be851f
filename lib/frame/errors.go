// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"fmt"
	"io"
)

// Stage identifies which part of a frame was being read.
type Stage string

const (
	StageHeader  Stage = "header"
	StagePayload Stage = "payload"
)

// FramingError reports a short read of a frame header or payload: the
// peer disconnected mid-frame, sent fewer bytes than declared, or the
// read failed. Ends the current session only.
type FramingError struct {
	Stage Stage
	Want  int
	Got   int
	Err   error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("short read of frame %s: got %d of %d bytes: %v", e.Stage, e.Got, e.Want, e.Err)
}

func (e *FramingError) Unwrap() error { return e.Err }

// AtBoundary reports whether the stream ended cleanly between frames:
// zero header bytes were read and the cause is EOF. This is how a peer
// disconnect looks when it is not in the middle of a message.
func (e *FramingError) AtBoundary() bool {
	return e.Stage == StageHeader && e.Got == 0 && errors.Is(e.Err, io.EOF)
}

// ProtocolError reports a complete payload that is not valid UTF-8
// JSON. The session is abandoned rather than resynchronised.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
