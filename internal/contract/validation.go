// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package contract

import (
	"os"
	"strconv"
)

const (
	// DefaultMaxSourceBytes is the baseline limit for a Markdown
	// manuscript. Manuscripts beyond it are almost always a wrong file
	// (an export, a concatenated corpus) rather than a paper.
	DefaultMaxSourceBytes = 16 << 20 // 16 MiB
)

// MaxSourceBytes returns the effective manuscript size limit.
// Controlled via env MDTEX_MAX_SOURCE_BYTES; falls back to
// DefaultMaxSourceBytes.
func MaxSourceBytes() int {
	if v := os.Getenv("MDTEX_MAX_SOURCE_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultMaxSourceBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateSource performs basic validation on a manuscript before
// parsing: size limit and UTF-8 plausibility (no NUL bytes).
func ValidateSource(src []byte) *ValidationResult {
	if len(src) > MaxSourceBytes() {
		return &ValidationResult{
			OK:      false,
			Message: "manuscript exceeds the source size limit",
		}
	}
	for _, b := range src {
		if b == 0 {
			return &ValidationResult{
				OK:      false,
				Message: "manuscript contains NUL bytes; is this a binary file?",
			}
		}
	}
	return &ValidationResult{OK: true}
}
