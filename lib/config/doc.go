// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads rpcready configuration from YAML.
//
// Configuration comes from a single file named by the --config flag
// (via [LoadFile]) or the RPCREADY_CONFIG environment variable (via
// [Load]). There is no discovery: with neither set the command runs on
// [Default]. Environment variables never override individual values;
// the only expansion is ${VAR} and ${VAR:-default} inside path fields.
//
// The identity announced in the READY event can be given inline under
// identity: or in a separate identity_file (YAML, JSON, or JSON with
// comments). [WatchIdentity] reloads that file when it changes so new
// clients see the edited identity without a restart.
//
// Key exports:
//
//   - [Config] -- endpoint, server, identity, audit, metrics, log
//   - [Default], [Load], [LoadFile]
//   - [LoadIdentityFile] and [WatchIdentity]
package config
