// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers that run before the
// structured logger exists or after it is gone.
package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ExitError asks Fatal to exit with a specific code. Commands return
// it when the failure is a result rather than a malfunction, such as
// an audit file whose digest chain does not verify.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Fatal writes "error: err" to stderr and exits: with the code of an
// *ExitError in the chain, otherwise 1.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes err and returns the exit code Fatal uses.
func report(w io.Writer, err error) int {
	fmt.Fprintf(w, "error: %v\n", err)
	var exitError *ExitError
	if errors.As(err, &exitError) && exitError.Code != 0 {
		return exitError.Code
	}
	return 1
}
