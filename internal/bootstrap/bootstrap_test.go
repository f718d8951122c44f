// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPrepareWorkspace(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")

	info, err := PrepareWorkspace(WorkspaceConfig{OutputDir: out, Debug: true}, nil)
	if err != nil {
		t.Fatalf("PrepareWorkspace() error = %v", err)
	}

	if _, err := os.Stat(info.OutputDir); err != nil {
		t.Errorf("output dir missing: %v", err)
	}
	if _, err := os.Stat(info.DebugDir); err != nil {
		t.Errorf("debug dir missing: %v", err)
	}

	// Idempotent over an existing workspace.
	if _, err := PrepareWorkspace(WorkspaceConfig{OutputDir: out}, nil); err != nil {
		t.Errorf("second PrepareWorkspace() error = %v", err)
	}
}

func TestPrepareWorkspace_EmptyDir(t *testing.T) {
	if _, err := PrepareWorkspace(WorkspaceConfig{}, nil); err == nil {
		t.Errorf("empty output dir should error")
	}
}
