// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package transport

import "net"

// PeerCredentials is unavailable on this platform.
func PeerCredentials(net.Conn) (Credentials, bool) {
	return Credentials{}, false
}
