// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
)

// TestUserError_Error verifies the Error() method implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err: &UserError{
				Message: "Cannot load reference library",
				Err:     fmt.Errorf("no such file"),
			},
			want: "Cannot load reference library: no such file",
		},
		{
			name: "without underlying error",
			err: &UserError{
				Message: "Unresolved citations",
				Err:     nil,
			},
			want: "Unresolved citations",
		},
		{
			name: "empty message with underlying error",
			err: &UserError{
				Message: "",
				Err:     fmt.Errorf("some error"),
			},
			want: ": some error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestUserError_Unwrap verifies error chain compatibility.
func TestUserError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("parse error at line 4")
	err := NewLibraryError("Cannot load reference library", "", "", inner)

	if !errors.Is(err, inner) {
		t.Errorf("errors.Is() should find the wrapped error")
	}
	if err.Unwrap() != inner {
		t.Errorf("Unwrap() = %v, want %v", err.Unwrap(), inner)
	}
}

// TestConstructors_ExitCodes verifies each constructor assigns the exit code
// of its error category.
func TestConstructors_ExitCodes(t *testing.T) {
	inner := fmt.Errorf("inner")
	tests := []struct {
		name string
		err  *UserError
		want int
	}{
		{"library", NewLibraryError("m", "c", "f", inner), ExitLibrary},
		{"extraction", NewExtractionError("m", "c", "f", inner), ExitExtraction},
		{"unresolved", NewUnresolvedError("m", "c", "f"), ExitUnresolved},
		{"verification", NewVerificationError("m", "c", "f", inner), ExitVerification},
		{"input", NewInputError("m", "c", "f"), ExitFatal},
		{"internal", NewInternalError("m", "c", "f", inner), ExitFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.ExitCode != tt.want {
				t.Errorf("ExitCode = %d, want %d", tt.err.ExitCode, tt.want)
			}
		})
	}
}

// TestUserError_Format verifies the formatted output contains all sections
// and omits empty ones.
func TestUserError_Format(t *testing.T) {
	// Force plain output regardless of environment.
	old := os.Getenv("NO_COLOR")
	os.Setenv("NO_COLOR", "1")
	defer os.Setenv("NO_COLOR", old)

	err := NewUnresolvedError(
		"Unresolved citations in strict mode",
		"3 occurrences did not match any library record",
		"Add the missing references or rerun with --auto-add real",
	)
	got := err.Format(true)

	for _, want := range []string{
		"Error: Unresolved citations in strict mode",
		"Cause: 3 occurrences did not match any library record",
		"Fix:   Add the missing references or rerun with --auto-add real",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() missing %q in:\n%s", want, got)
		}
	}

	bare := (&UserError{Message: "just a message"}).Format(true)
	if strings.Contains(bare, "Cause:") || strings.Contains(bare, "Fix:") {
		t.Errorf("Format() should omit empty sections, got:\n%s", bare)
	}
}

// TestUserError_ToJSON verifies the JSON conversion keeps the exit code.
func TestUserError_ToJSON(t *testing.T) {
	err := NewVerificationError("Hard findings in PDF", "2 unresolved markers", "", nil)
	j := err.ToJSON()

	if j.Error != "Hard findings in PDF" {
		t.Errorf("ToJSON().Error = %q", j.Error)
	}
	if j.ExitCode != ExitVerification {
		t.Errorf("ToJSON().ExitCode = %d, want %d", j.ExitCode, ExitVerification)
	}
}
