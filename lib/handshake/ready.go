// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rpcready/rpcready/lib/frame"
)

// Fixed envelope values of the READY dispatch.
const (
	CommandDispatch = "DISPATCH"
	EventReady      = "READY"
)

// ReadyEvent is the JSON document sent as the first frame on every
// connection. Field order matches the documented payload shape.
type ReadyEvent struct {
	Command string    `json:"cmd"`
	Event   string    `json:"evt"`
	Nonce   *string   `json:"nonce"`
	Data    ReadyData `json:"data"`
}

// ReadyData is the data object of a ReadyEvent.
type ReadyData struct {
	Version int          `json:"v"`
	Config  ClientConfig `json:"config"`
	User    ReadyUser    `json:"user"`
}

// ReadyUser is the user object on the wire. It differs from User only
// by carrying avatar_decoration_data, which is always null.
type ReadyUser struct {
	ID                   string  `json:"id"`
	Username             string  `json:"username"`
	Discriminator        string  `json:"discriminator"`
	GlobalName           string  `json:"global_name"`
	Avatar               *string `json:"avatar"`
	AvatarDecorationData any     `json:"avatar_decoration_data"`
	Bot                  bool    `json:"bot"`
	Flags                int     `json:"flags"`
	PremiumType          int     `json:"premium_type"`
}

// BuildReadyEvent fills the fixed DISPATCH/READY envelope with
// identity. The nonce is always null.
func BuildReadyEvent(identity Identity) ReadyEvent {
	user := identity.User
	return ReadyEvent{
		Command: CommandDispatch,
		Event:   EventReady,
		Data: ReadyData{
			Version: identity.Version,
			Config:  identity.Config,
			User: ReadyUser{
				ID:            user.ID,
				Username:      user.Username,
				Discriminator: user.Discriminator,
				GlobalName:    user.GlobalName,
				Avatar:        user.Avatar,
				Bot:           user.Bot,
				Flags:         user.Flags,
				PremiumType:   user.PremiumType,
			},
		},
	}
}

// Marshal encodes event as indented JSON text, four spaces per level.
func Marshal(event ReadyEvent) ([]byte, error) {
	payload, err := json.MarshalIndent(event, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("marshal ready event: %w", err)
	}
	return payload, nil
}

// Send encodes event, frames it with opcode 1, and writes it to w.
// Returns the payload that was written so the caller can audit it.
// A failed write is reported as a *WriteError.
func Send(w io.Writer, event ReadyEvent) ([]byte, error) {
	payload, err := Marshal(event)
	if err != nil {
		return nil, err
	}
	if err := frame.WriteFrame(w, frame.OpcodeFrame, payload); err != nil {
		return nil, &WriteError{Err: err}
	}
	return payload, nil
}

// WriteError reports a failure to send a frame to the client. Ends the
// current session only.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sending ready event: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
