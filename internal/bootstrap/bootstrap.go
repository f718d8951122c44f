// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// WorkspaceConfig holds configuration for preparing a run workspace.
type WorkspaceConfig struct {
	// OutputDir receives the emitted artifacts and reports.
	OutputDir string

	// Debug also creates OutputDir/debug for intermediate artifacts.
	Debug bool
}

// WorkspaceInfo describes the prepared workspace.
type WorkspaceInfo struct {
	OutputDir     string
	DebugDir      string
	QuarantineDir string
}

// PrepareWorkspace creates the run's directory layout. It is idempotent:
// calling it over an existing workspace is safe and never disturbs
// artifacts from prior runs.
func PrepareWorkspace(config WorkspaceConfig, logger *slog.Logger) (*WorkspaceInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.OutputDir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}

	info := &WorkspaceInfo{
		OutputDir:     config.OutputDir,
		QuarantineDir: filepath.Join(config.OutputDir, "quarantine"),
	}

	if err := os.MkdirAll(info.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", info.OutputDir, err)
	}
	if config.Debug {
		info.DebugDir = filepath.Join(config.OutputDir, "debug")
		if err := os.MkdirAll(info.DebugDir, 0o755); err != nil {
			return nil, fmt.Errorf("create debug directory %s: %w", info.DebugDir, err)
		}
	}

	// Writability is checked up front so a permissions problem surfaces
	// before any pipeline work, not at the final write.
	probe := filepath.Join(info.OutputDir, ".write-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return nil, fmt.Errorf("output directory %s is not writable: %w", info.OutputDir, err)
	}
	_ = os.Remove(probe)

	logger.Debug("bootstrap.workspace", "output", info.OutputDir, "debug", info.DebugDir)
	return info, nil
}
