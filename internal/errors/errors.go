// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the mdtex CLI.
//
// This package defines UserError, a type that carries structured error
// information including what went wrong, why it happened, and how to fix it.
// It also defines the exit codes of the conversion pipeline.
//
// # Usage Example
//
// Creating and displaying errors:
//
//	err := errors.NewLibraryError(
//	    "Cannot load reference library",
//	    "The RDF export at refs/library.rdf contains zero bibliographic items",
//	    "Re-export your library from Zotero including all collections",
//	    underlyingErr,
//	)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
//
// # Exit Codes
//
// The pipeline exit codes are part of the CLI contract:
//   - ExitSuccess (0): All gates passed
//   - ExitFatal (1): Any other fatal error (internal bugs included)
//   - ExitLibrary (2): Reference library missing, empty, or malformed
//   - ExitExtraction (3): Markdown unreadable or citation extraction failed
//   - ExitUnresolved (4): Unresolved citation occurrences in strict mode
//   - ExitVerification (5): Post-compile verifier reported hard findings
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for the conversion pipeline.
const (
	// ExitSuccess indicates that every pipeline gate passed.
	ExitSuccess = 0

	// ExitFatal indicates any fatal error not covered by a more
	// specific code, including internal invariant violations.
	ExitFatal = 1

	// ExitLibrary indicates the reference library could not be loaded
	// (missing file, malformed RDF/BibTeX, or zero bibliographic items
	// in strict mode).
	ExitLibrary = 2

	// ExitExtraction indicates the Markdown source could not be read or
	// parsed into citation occurrences.
	ExitExtraction = 3

	// ExitUnresolved indicates one or more citation occurrences could
	// not be resolved against the library in strict mode.
	ExitUnresolved = 4

	// ExitVerification indicates the post-compile verifier found hard
	// defects (unresolved markers, temp keys, stub titles).
	ExitVerification = 5
)

// UserError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: What went wrong (user-facing error description)
//   - Cause: Why it happened (diagnostic information)
//   - Fix: How to fix it (actionable suggestion)
//
// UserError also carries an exit code for consistent CLI exit behaviour
// and optionally wraps an underlying error for error chain compatibility.
type UserError struct {
	// Message describes what went wrong in user-friendly language.
	Message string

	// Cause explains why the error occurred (diagnostic information).
	Cause string

	// Fix provides an actionable suggestion on how to resolve the error.
	Fix string

	// ExitCode is the exit code that should be used when exiting due to this error.
	ExitCode int

	// Err is the underlying error that caused this error (optional).
	Err error
}

// Error implements the error interface.
//
// It returns a simple error message string. If an underlying error is present,
// it appends that error's message for context.
func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for compatibility with errors.Is and errors.As.
func (e *UserError) Unwrap() error {
	return e.Err
}

// NewLibraryError creates a library load error with exit code ExitLibrary.
//
// Use this for errors related to missing, empty, or malformed reference
// library files (RDF or BibTeX).
func NewLibraryError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitLibrary,
		Err:      err,
	}
}

// NewExtractionError creates an extraction error with exit code ExitExtraction.
//
// Use this for errors related to reading or parsing the Markdown source.
func NewExtractionError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitExtraction,
		Err:      err,
	}
}

// NewUnresolvedError creates an unresolved-citation error with exit code
// ExitUnresolved.
//
// Use this when one or more occurrences could not be matched against the
// library in strict mode. The cause should name the first offending
// occurrence and the count of others.
func NewUnresolvedError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitUnresolved,
		Err:      nil,
	}
}

// NewVerificationError creates a verification error with exit code
// ExitVerification.
//
// Use this when the post-compile verifier reports hard findings such as
// unresolved markers in the PDF or defect patterns in the .bbl.
func NewVerificationError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitVerification,
		Err:      err,
	}
}

// NewInputError creates an input validation error with exit code ExitFatal.
//
// Use this for invalid command-line arguments or option combinations.
// Input errors typically do not wrap an underlying error.
func NewInputError(msg, cause, fix string) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitFatal,
		Err:      nil,
	}
}

// NewInternalError creates an internal error with exit code ExitFatal.
//
// Use this for unexpected errors that indicate bugs in the program, such as
// emitted key collisions or replacement count mismatches. Internal errors
// should be reported to the maintainers.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return &UserError{
		Message:  msg,
		Cause:    cause,
		Fix:      fix,
		ExitCode: ExitFatal,
		Err:      err,
	}
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display.
//
// The output includes colored sections for Error (red/bold), Cause (yellow),
// and Fix (green). Color output respects the NO_COLOR environment variable
// and can be explicitly disabled with the noColor parameter.
//
// Example output:
//
//	Error: Unresolved citations in strict mode
//	Cause: 3 occurrences did not match any library record
//	Fix:   Add the missing references to your library or rerun with --auto-add real
//
// Empty Cause or Fix fields are omitted from the output.
func (e *UserError) Format(noColor bool) string {
	// Save and restore global color state to avoid side effects
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON represents error information in JSON format.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// FatalError prints the error and exits with the appropriate code.
//
// If the error is a UserError, it uses Format() for colored output or
// ToJSON() for JSON mode. For non-UserError types, it prints a simple
// error message and exits with ExitFatal.
//
// This function never returns - it always calls os.Exit().
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	userErr, ok := err.(*UserError)
	if !ok {
		if jsonOutput {
			_ = json.NewEncoder(os.Stderr).Encode(ErrorJSON{
				Error:    err.Error(),
				ExitCode: ExitFatal,
			})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(ExitFatal)
	}

	if jsonOutput {
		_ = json.NewEncoder(os.Stderr).Encode(userErr.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, userErr.Format(false))
	}
	os.Exit(userErr.ExitCode)
}
