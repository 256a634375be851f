// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Rpcready serves a local RPC endpoint that answers every client with
// a configured READY handshake and logs what the client sends back.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rpcready/rpcready/lib/process"
)

func main() {
	if err := run(context.Background(), nil); err != nil {
		process.Fatal(err)
	}
}

// run executes the command tree. A nil args uses os.Args.
func run(ctx context.Context, args []string) error {
	root := rootCommand()
	if args != nil {
		root.SetArgs(args)
	}
	return root.ExecuteContext(ctx)
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "rpcready",
		Short: "Local RPC endpoint that answers clients with a READY handshake",
		Long: `Rpcready listens on the local RPC endpoint desktop clients connect to
(a Unix socket, or a named pipe on Windows). Every client receives a
DISPATCH/READY event carrying the configured identity as its first
frame; everything the client sends afterwards is decoded, logged, and
written to the audit file, and never answered.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCommand(),
		probeCommand(),
		auditCommand(),
		versionCommand(),
	)
	return root
}
