// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package ui provides user interface utilities for the mdtex CLI.
//
// This package offers color output helpers switched by the --no-color flag.
// InitColors sets the global color state from that flag alone; once it has
// run, neither the NO_COLOR environment variable nor a non-TTY stdout
// turns colors off. IsTerminal reports whether stdout is a TTY.
//
// Color usage guidelines:
//   - Red: Errors, failures, hard verifier findings
//   - Yellow: Warnings, soft findings, duplicate identifiers
//   - Green: Success, gates passed
//   - Cyan: Info, counters, neutral messages
//   - Bold: Headers, important labels
//   - Dim: Less important details, paths, citation keys
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Pre-configured color instances for consistent CLI output.
//
// These are initialized at package load time and respect the global
// color.NoColor setting when called.
var (
	// Red is used for error messages and hard findings.
	Red = color.New(color.FgRed)

	// Yellow is used for warnings and soft findings.
	Yellow = color.New(color.FgYellow)

	// Green is used for success messages and passed gates.
	Green = color.New(color.FgGreen)

	// Cyan is used for informational messages and counters.
	Cyan = color.New(color.FgCyan)

	// Bold is used for headers and important labels.
	Bold = color.New(color.Bold)

	// Dim is used for less important details like paths and keys.
	Dim = color.New(color.Faint)
)

// InitColors configures global color output based on the noColor flag.
//
// This should be called early in main() after parsing flags to ensure
// all color output follows the --no-color flag. The flag value is assigned
// as is: InitColors(false) enables colors even when NO_COLOR is set or
// stdout is not a terminal.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// IsTerminal reports whether stdout is attached to a terminal.
//
// Progress bars and interactive output are only shown on a TTY; piped
// output gets plain line-oriented text.
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Success prints a green success message with a checkmark prefix.
//
// Example output: "✓ All 412 citations resolved"
func Success(msg string) {
	_, _ = Green.Println("✓ " + msg)
}

// Successf prints a formatted green success message with a checkmark prefix.
func Successf(format string, args ...any) {
	_, _ = Green.Printf("✓ "+format+"\n", args...)
}

// Warning prints a yellow warning message with a warning symbol prefix.
//
// Example output: "⚠ 2 duplicate DOIs in library"
func Warning(msg string) {
	_, _ = Yellow.Println("⚠ " + msg)
}

// Warningf prints a formatted yellow warning message with a warning symbol prefix.
func Warningf(format string, args ...any) {
	_, _ = Yellow.Printf("⚠ "+format+"\n", args...)
}

// Error prints a red error message with an X prefix.
//
// Example output: "✗ Verification failed: 3 unresolved markers"
func Error(msg string) {
	_, _ = Red.Println("✗ " + msg)
}

// Errorf prints a formatted red error message with an X prefix.
func Errorf(format string, args ...any) {
	_, _ = Red.Printf("✗ "+format+"\n", args...)
}

// Info prints a cyan informational message with an info symbol prefix.
//
// Example output: "ℹ Matching 412 occurrences against 1,038 records"
func Info(msg string) {
	_, _ = Cyan.Println("ℹ " + msg)
}

// Infof prints a formatted cyan informational message with an info symbol prefix.
func Infof(format string, args ...any) {
	_, _ = Cyan.Printf("ℹ "+format+"\n", args...)
}

// Header prints a bold header with an underline separator.
//
// Example output:
//
//	mdtex Conversion Report
//	=======================
func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

// SubHeader prints a bold sub-header without an underline.
//
// Example output: "Matcher statistics:"
func SubHeader(text string) {
	_, _ = Bold.Println(text)
}

// Label returns a bold-formatted label string for inline use.
//
// Example: fmt.Printf("%s %s\n", ui.Label("Output:"), outDir)
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns a dim-formatted string for less important text.
//
// Example: fmt.Printf("  bound to %s\n", ui.DimText(key))
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a cyan-formatted count value for statistics display.
//
// Example: fmt.Printf("  DOI index: %s\n", ui.CountText(317))
func CountText(count int) string {
	return Cyan.Sprint(count)
}
