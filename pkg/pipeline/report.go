// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package pipeline

import (
	"github.com/kraklabs/mdtex/internal/output"
	"github.com/kraklabs/mdtex/pkg/autoadd"
	"github.com/kraklabs/mdtex/pkg/bibgen"
	"github.com/kraklabs/mdtex/pkg/library"
	"github.com/kraklabs/mdtex/pkg/match"
	"github.com/kraklabs/mdtex/pkg/verify"
)

// Phase names, in pipeline order.
const (
	PhaseStart     = "start"
	PhaseLoaded    = "loaded"
	PhaseExtracted = "extracted"
	PhaseMatched   = "matched"
	PhaseAutoAdded = "auto_added"
	PhaseEmitted   = "emitted"
	PhaseSanitized = "sanitized"
	PhaseRewritten = "rewritten"
	PhaseCompiled  = "compiled"
	PhaseVerified  = "verified"
	PhaseSuccess   = "success"
	PhaseFailure   = "failure"
)

// Report is the structured run report, persisted to
// OutputDir/report.json for every run, successful or not, that got past
// workspace preparation.
type Report struct {
	Phase   string `json:"phase"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// AllowedFailures marks a run that only "passed" because the user
	// downgraded hard findings; it is not a successful conversion.
	AllowedFailures bool `json:"allowed_failures,omitempty"`

	Library struct {
		Path       string              `json:"path"`
		Stats      library.IndexStats  `json:"stats"`
		Duplicates []library.Duplicate `json:"duplicates,omitempty"`
	} `json:"library"`

	Extraction struct {
		Occurrences int `json:"occurrences"`
	} `json:"extraction"`

	Match struct {
		Stats    match.Stats    `json:"stats"`
		Warnings []string       `json:"warnings,omitempty"`
		Misses   []match.Result `json:"misses,omitempty"`
	} `json:"match"`

	AutoAdd struct {
		Policy   string             `json:"policy"`
		Plan     []autoadd.PlanItem `json:"plan,omitempty"`
		Resolved int                `json:"resolved"`
	} `json:"auto_add"`

	Emission struct {
		Entries  int      `json:"entries"`
		Keys     []string `json:"keys,omitempty"`
		Replaced int      `json:"replaced"`
	} `json:"emission"`

	Sanitize *bibgen.SanitizeReport `json:"sanitize,omitempty"`
	Verify   *verify.Report         `json:"verify,omitempty"`

	Outputs struct {
		Bib    string `json:"bib,omitempty"`
		Tex    string `json:"tex,omitempty"`
		Report string `json:"report"`
	} `json:"outputs"`
}

// write persists the report to path, best-effort: reporting must never
// mask the error that produced the report.
func (r *Report) write(path string) {
	r.Outputs.Report = path
	_ = output.WriteJSONFile(path, r)
}
