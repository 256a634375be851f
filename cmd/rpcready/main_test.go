// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/rpcready/rpcready/lib/audit"
	"github.com/rpcready/rpcready/lib/config"
	"github.com/rpcready/rpcready/lib/handshake"
	"github.com/rpcready/rpcready/lib/ipcserver"
	"github.com/rpcready/rpcready/lib/process"
	"github.com/rpcready/rpcready/lib/rpcclient"
	"github.com/rpcready/rpcready/lib/testutil"
	"github.com/rpcready/rpcready/lib/transport"
)

// execute runs the command tree with args and returns its stdout.
func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := rootCommand()
	var output bytes.Buffer
	root.SetOut(&output)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return output.String(), err
}

func TestNewLogger(t *testing.T) {
	var output bytes.Buffer

	logger, err := newLogger(&output, "info", "auto")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "key", "value")
	// A buffer is not a terminal, so auto selects JSON.
	var entry map[string]any
	if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
		t.Fatalf("auto format did not produce one JSON line: %v\n%s", err, output.String())
	}
	if entry["msg"] != "shown" || entry["key"] != "value" {
		t.Errorf("unexpected entry: %v", entry)
	}

	output.Reset()
	logger, err = newLogger(&output, "debug", "text")
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	logger.Debug("visible")
	if !strings.Contains(output.String(), "msg=visible") {
		t.Errorf("text output = %q", output.String())
	}

	if _, err := newLogger(&output, "loud", "json"); err == nil {
		t.Error("accepted an unknown level")
	}
	if _, err := newLogger(&output, "info", "xml"); err == nil {
		t.Error("accepted an unknown format")
	}
}

func TestServeFlagsApplyOnlyChanged(t *testing.T) {
	var flags serveFlags
	set := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.register(set)
	if err := set.Parse([]string{"--socket", "/run/test.sock", "--concurrent", "--read-timeout", "2s"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.Audit.Path = "/var/log/rpcready.jsonl"
	flags.apply(set, cfg)

	if cfg.EndpointPath() != "/run/test.sock" {
		t.Errorf("endpoint path = %s", cfg.EndpointPath())
	}
	if !cfg.Server.Concurrent || cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" || cfg.Audit.Path != "/var/log/rpcready.jsonl" {
		t.Error("unchanged flags overwrote config values")
	}
}

func writeAuditFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := audit.OpenFile(audit.FileOptions{Path: path})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	for _, record := range []audit.Record{
		{Direction: audit.DirectionSent, Session: "s1", Opcode: 1, Payload: json.RawMessage(`{"cmd":"DISPATCH","evt":"READY"}`)},
		{Direction: audit.DirectionReceived, Session: "s1", Opcode: 1, Payload: json.RawMessage(`{"cmd":"TEST"}`)},
	} {
		if err := sink.Append(record); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestAuditDump(t *testing.T) {
	path := writeAuditFile(t)

	output, err := execute(t, context.Background(), "audit", "dump", path)
	if err != nil {
		t.Fatalf("audit dump: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Fatalf("dumped %d lines, want 2:\n%s", len(lines), output)
	}
	var record audit.Record
	if err := json.Unmarshal([]byte(lines[1]), &record); err != nil {
		t.Fatalf("line is not a record: %v", err)
	}
	if record.Direction != audit.DirectionReceived || string(record.Payload) != `{"cmd":"TEST"}` {
		t.Errorf("second record = %+v", record)
	}
}

func TestAuditVerify(t *testing.T) {
	path := writeAuditFile(t)

	output, err := execute(t, context.Background(), "audit", "verify", path)
	if err != nil {
		t.Fatalf("audit verify: %v", err)
	}
	if !strings.Contains(output, "2 records verified") {
		t.Errorf("output = %q", output)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	tampered := bytes.Replace(data, []byte(`"TEST"`), []byte(`"EVIL"`), 1)
	if err := os.WriteFile(path, tampered, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = execute(t, context.Background(), "audit", "verify", path)
	var exitError *process.ExitError
	if !errors.As(err, &exitError) || exitError.Code != verifyFailureCode {
		t.Fatalf("verify of tampered file = %v, want exit code %d", err, verifyFailureCode)
	}
}

func TestProbe(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "ipc.sock")
	sink := audit.NewMemorySink()
	identity := handshake.DefaultIdentity()
	identity.User.ID = "probe-user"
	server, err := ipcserver.New(ipcserver.Options{
		Transport: transport.New(transport.Options{Path: path}),
		Identity:  handshake.Static(identity),
		Audit:     sink,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		server.Wait()
	}()
	if err := server.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var output string
	deadline := time.Now().Add(5 * time.Second)
	for {
		output, err = execute(t, context.Background(), "probe", "--socket", path, "--send", `{"cmd":"TEST","nonce":"abc"}`)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("probe: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !strings.Contains(output, `"evt": "READY"`) || !strings.Contains(output, `"probe-user"`) {
		t.Errorf("probe output:\n%s", output)
	}

	timeout := time.After(5 * time.Second)
	for {
		changed := sink.Changed()
		records := sink.Records()
		if len(records) >= 2 {
			if string(records[1].Payload) != `{"cmd":"TEST","nonce":"abc"}` {
				t.Errorf("received payload = %s", records[1].Payload)
			}
			break
		}
		select {
		case <-changed:
		case <-timeout:
			t.Fatalf("server audited %d records, want 2", len(records))
		}
	}
}

func TestProbeRejectsInvalidSend(t *testing.T) {
	_, err := execute(t, context.Background(), "probe", "--socket", "/nonexistent.sock", "--send", "{")
	if err == nil || !strings.Contains(err.Error(), "not JSON") {
		t.Errorf("probe error = %v", err)
	}
}

func TestServe(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	directory := testutil.SocketDir(t)
	socketPath := filepath.Join(directory, "ipc.sock")
	auditPath := filepath.Join(directory, "audit.jsonl")

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "serve", "--socket", socketPath, "--audit", auditPath, "--log-format", "json")
		result <- err
	}()

	var client *rpcclient.Client
	deadline := time.Now().Add(5 * time.Second)
	for {
		var err error
		client, err = rpcclient.Dial(context.Background(), socketPath, time.Second)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("dial: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	client.Conn().SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := client.ReadReady(); err != nil {
		t.Fatalf("ReadReady: %v", err)
	}
	client.Close()

	cancel()
	if err := testutil.RequireReceive(t, result, 5*time.Second, "serve did not exit"); err != nil {
		t.Fatalf("serve: %v", err)
	}

	records, err := audit.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("reading audit file: %v", err)
	}
	if len(records) != 1 || records[0].Direction != audit.DirectionSent {
		t.Fatalf("audit records = %+v", records)
	}
	if err := audit.Verify(records); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	_, err := execute(t, context.Background(), "serve", "--log-level", "loud", "--audit", "")
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("serve error = %v", err)
	}
}
