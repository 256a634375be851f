// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package transport

// pipePrefix is the namespace for local named pipes.
const pipePrefix = `\\.\pipe\`

// Resolve returns the named pipe path for an endpoint name.
func Resolve(name string) string {
	return pipePrefix + name
}
