// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestApplySettingsFillsDefaults(t *testing.T) {
	build := Build{Commit: "unknown", BuildTime: "unknown"}
	applySettings(&build, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	})
	if build.Commit != "0123456789ab" {
		t.Errorf("commit = %q, want 12-character prefix", build.Commit)
	}
	if build.BuildTime != "2026-01-02T03:04:05Z" {
		t.Errorf("build time = %q", build.BuildTime)
	}
	if !build.Dirty {
		t.Error("dirty = false, want true")
	}
}

func TestApplySettingsKeepsLdflags(t *testing.T) {
	build := Build{Commit: "abc1234", BuildTime: "2025-12-31"}
	applySettings(&build, []debug.BuildSetting{
		{Key: "vcs.revision", Value: "ffffffffffff"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	})
	if build.Commit != "abc1234" || build.BuildTime != "2025-12-31" {
		t.Errorf("ldflags values overwritten: %+v", build)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Version) {
		t.Errorf("Full() = %q, want prefix %q", full, Version)
	}
	if !strings.Contains(full, "Go: go") {
		t.Errorf("Full() missing Go version: %q", full)
	}
}
