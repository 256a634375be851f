// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/rpcready/rpcready/lib/handshake"
)

// LoadIdentityFile reads an identity from path. The extension picks
// the syntax: .yaml and .yml are YAML; .json and .jsonc are JSON with
// comments and trailing commas allowed. Fields the file omits keep
// their DefaultIdentity values. The result is validated.
func LoadIdentityFile(path string) (handshake.Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("reading identity file: %w", err)
	}
	identity, err := ParseIdentity(data, filepath.Ext(path))
	if err != nil {
		return handshake.Identity{}, fmt.Errorf("%s: %w", path, err)
	}
	return identity, nil
}

// ParseIdentity decodes data in the syntax named by extension and
// validates the result.
func ParseIdentity(data []byte, extension string) (handshake.Identity, error) {
	identity := handshake.DefaultIdentity()

	switch strings.ToLower(extension) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &identity); err != nil {
			return handshake.Identity{}, fmt.Errorf("parsing identity: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &identity); err != nil {
			return handshake.Identity{}, fmt.Errorf("parsing identity: %w", err)
		}
	default:
		return handshake.Identity{}, fmt.Errorf("unsupported identity file extension %q (want .yaml, .yml, .json, or .jsonc)", extension)
	}

	if err := identity.Validate(); err != nil {
		return handshake.Identity{}, err
	}
	return identity, nil
}

// WatchIdentity reloads the identity file at path into target whenever
// it changes, until ctx is cancelled. An edit that fails to load is
// logged and the previous identity stays in effect.
//
// The parent directory is watched rather than the file so that editors
// which save by rename are followed.
func WatchIdentity(ctx context.Context, path string, target *handshake.Swappable, logger *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating identity watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			identity, err := LoadIdentityFile(path)
			if err != nil {
				logger.Warn("identity reload failed, keeping previous identity", "path", path, "error", err)
				continue
			}
			target.Store(identity)
			logger.Info("identity reloaded", "path", path, "user_id", identity.User.ID)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("identity watcher error", "path", path, "error", err)
		}
	}
}
