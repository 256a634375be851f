// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials returns the SO_PEERCRED credentials of the process
// that connected. Reports false for non-Unix connections or when the
// kernel does not provide them.
func PeerCredentials(connection net.Conn) (Credentials, bool) {
	unixConnection, ok := connection.(*net.UnixConn)
	if !ok {
		return Credentials{}, false
	}
	raw, err := unixConnection.SyscallConn()
	if err != nil {
		return Credentials{}, false
	}

	var credentials *unix.Ucred
	var sockoptErr error
	if err := raw.Control(func(fd uintptr) {
		credentials, sockoptErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil || sockoptErr != nil {
		return Credentials{}, false
	}
	return Credentials{PID: credentials.Pid, UID: credentials.Uid, GID: credentials.Gid}, true
}
