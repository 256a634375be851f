// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpcready/rpcready/lib/frame"
	"github.com/rpcready/rpcready/lib/rpcclient"
	"github.com/rpcready/rpcready/lib/transport"
)

func probeCommand() *cobra.Command {
	var (
		endpoint string
		socket   string
		send     []string
		timeout  time.Duration
	)
	command := &cobra.Command{
		Use:   "probe",
		Short: "Connect to the endpoint, print the READY event, optionally send frames",
		Long: `Probe connects as a client would, prints the READY payload the server
sends, then writes each --send value as a frame with opcode 1. The
server never answers those frames; check its log or audit file to see
them.`,
		Example: `  rpcready probe
  rpcready probe --send '{"cmd":"TEST","evt":null,"nonce":"abc"}'`,
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			path := socket
			if path == "" {
				path = transport.Resolve(endpoint)
			}

			for _, message := range send {
				if !json.Valid([]byte(message)) {
					return fmt.Errorf("--send value is not JSON: %s", message)
				}
			}

			client, err := rpcclient.Dial(command.Context(), path, timeout)
			if err != nil {
				return err
			}
			defer client.Close()

			if timeout > 0 {
				client.Conn().SetReadDeadline(time.Now().Add(timeout))
			}
			_, payload, err := client.ReadReady()
			if err != nil {
				return err
			}

			var indented bytes.Buffer
			if err := json.Indent(&indented, payload, "", "  "); err != nil {
				return fmt.Errorf("formatting ready event: %w", err)
			}
			fmt.Fprintln(command.OutOrStdout(), indented.String())

			for _, message := range send {
				if err := client.Send(frame.OpcodeFrame, []byte(message)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags := command.Flags()
	flags.StringVar(&endpoint, "endpoint", transport.DefaultName, "endpoint name, resolved to a platform path")
	flags.StringVar(&socket, "socket", "", "explicit endpoint path, overrides --endpoint")
	flags.StringArrayVar(&send, "send", nil, "JSON payload to send after the handshake (repeatable)")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "connect and read timeout (0 waits forever)")
	return command
}
