// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpcready/rpcready/lib/audit"
	"github.com/rpcready/rpcready/lib/process"
)

func auditCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "audit",
		Short: "Inspect audit files",
	}
	command.AddCommand(auditDumpCommand(), auditVerifyCommand())
	return command
}

func auditDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file>",
		Short: "Print every record of an audit file as one JSON object per line",
		Long: `Dump decodes an audit segment (JSONL or CBOR, plain or rotated and
compressed with lz4 or zstd) and prints it as JSON lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			records, err := audit.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			encoder := json.NewEncoder(command.OutOrStdout())
			for _, record := range records {
				if err := encoder.Encode(record); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// verifyFailureCode is the exit status of a file that decodes but
// whose digest chain is broken.
const verifyFailureCode = 2

func auditVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check the digest chain of an audit file",
		Long: `Verify recomputes the digest chain of an audit segment. It exits 0 when
every record matches, 2 when a record was altered, removed, or
reordered, and 1 when the file cannot be read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			records, err := audit.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if err := audit.Verify(records); err != nil {
				return &process.ExitError{
					Code: verifyFailureCode,
					Err:  fmt.Errorf("%s: %w", args[0], err),
				}
			}
			fmt.Fprintf(command.OutOrStdout(), "%s: %d records verified\n", args[0], len(records))
			return nil
		},
	}
}
