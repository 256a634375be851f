// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package transport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rpcready/rpcready/lib/testutil"
)

func TestResolvePrefersRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("TMPDIR", "/var/tmp")
	if got := Resolve(DefaultName); got != "/run/user/1000/discord-ipc-0" {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolveFallsBack(t *testing.T) {
	for _, variable := range runtimeDirVariables {
		t.Setenv(variable, "")
	}
	if got := Resolve("discord-ipc-3"); got != "/tmp/discord-ipc-3" {
		t.Errorf("Resolve = %q", got)
	}

	t.Setenv("TEMP", "/scratch")
	if got := Resolve("discord-ipc-3"); got != "/scratch/discord-ipc-3" {
		t.Errorf("Resolve with TEMP = %q", got)
	}
}

func TestListenFreshInstancePerCycle(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "discord-ipc-0")
	transport := New(Options{Path: path, Permissions: 0o600})

	for cycle := range 3 {
		listener, err := transport.Listen()
		if err != nil {
			t.Fatalf("cycle %d: Listen: %v", cycle, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("cycle %d: socket not created: %v", cycle, err)
		}
		if info.Mode().Perm() != 0o600 {
			t.Errorf("cycle %d: mode = %v, want 0600", cycle, info.Mode().Perm())
		}

		accepted := make(chan error, 1)
		go func() {
			connection, err := listener.Accept()
			if err == nil {
				connection.Close()
			}
			accepted <- err
		}()

		connection, err := Dial(context.Background(), path, time.Second)
		if err != nil {
			t.Fatalf("cycle %d: Dial: %v", cycle, err)
		}
		connection.Close()
		if err := testutil.RequireReceive(t, accepted, 5*time.Second, "accept"); err != nil {
			t.Fatalf("cycle %d: Accept: %v", cycle, err)
		}
		listener.Close()
	}
}

func TestListenReplacesStaleSocket(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "discord-ipc-0")
	transport := New(Options{Path: path})

	first, err := transport.Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	// Simulate a crashed process: the socket file outlives the
	// listener's file descriptor.
	if unixListener, ok := first.(interface{ SetUnlinkOnClose(bool) }); ok {
		unixListener.SetUnlinkOnClose(false)
	}
	first.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stale socket not left behind: %v", err)
	}

	second, err := transport.Listen()
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	second.Close()
}

func TestListenRefusesRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "discord-ipc-0")
	if err := os.WriteFile(path, []byte("not a socket"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(Options{Path: path}).Listen()
	var transportError *TransportError
	if !errors.As(err, &transportError) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "not a socket" {
		t.Error("regular file at endpoint path was modified")
	}
}

func TestDialMissingEndpoint(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "absent")
	_, err := Dial(context.Background(), path, time.Second)
	var transportError *TransportError
	if !errors.As(err, &transportError) || transportError.Op != "dial" {
		t.Fatalf("error = %v, want dial *TransportError", err)
	}
}

func TestPeerCredentials(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "discord-ipc-0")
	listener, err := New(Options{Path: path}).Listen()
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	go func() {
		connection, err := Dial(context.Background(), path, time.Second)
		if err == nil {
			defer connection.Close()
			time.Sleep(100 * time.Millisecond)
		}
	}()

	connection, err := listener.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer connection.Close()

	credentials, ok := PeerCredentials(connection)
	if runtime.GOOS != "linux" {
		if ok {
			t.Error("credentials reported on a platform without SO_PEERCRED")
		}
		return
	}
	if !ok {
		t.Fatal("no peer credentials on linux")
	}
	if credentials.PID != int32(os.Getpid()) {
		t.Errorf("pid = %d, want %d", credentials.PID, os.Getpid())
	}
	if credentials.UID != uint32(os.Getuid()) {
		t.Errorf("uid = %d, want %d", credentials.UID, os.Getuid())
	}
}
