// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package transport

import (
	"os"
	"path/filepath"
)

// runtimeDirVariables are consulted in order for the directory that
// holds the endpoint socket.
var runtimeDirVariables = []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"}

// Resolve returns the socket path for an endpoint name.
func Resolve(name string) string {
	for _, variable := range runtimeDirVariables {
		if directory := os.Getenv(variable); directory != "" {
			return filepath.Join(directory, name)
		}
	}
	return filepath.Join("/tmp", name)
}
