// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package pipeline sequences the citation pipeline end to end: load the
// library, extract citations, match them, optionally auto-add the misses,
// emit and sanitize the bibliography, rewrite the Markdown, and (when
// compiled artifacts exist) verify them.
//
// Every stage runs behind a fail-fast gate in strict mode, and the full
// run report is persisted to the output directory whether the run
// succeeded or not.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/mdtex/pkg/autoadd"
	"github.com/kraklabs/mdtex/pkg/bibgen"
	"github.com/kraklabs/mdtex/pkg/library"
	"github.com/kraklabs/mdtex/pkg/match"
)

// Options is the immutable run configuration, threaded explicitly from
// the CLI to every component. There is no ambient global state: whoever
// constructs the pipeline decides every policy knob.
type Options struct {
	// MarkdownPath is the source manuscript.
	MarkdownPath string

	// LibraryPath is the reference library export (RDF preferred).
	LibraryPath string

	// LibraryFormat overrides format detection when set.
	LibraryFormat library.Format

	// OutputDir receives the emitted .tex, .bib, report.json, and debug
	// artifacts.
	OutputDir string

	// Strict enables the fail-fast gates (default on). Relaxed runs
	// downgrade data-quality failures to report entries.
	Strict bool

	// AutoAdd selects the gateway policy for unmatched occurrences.
	AutoAdd autoadd.Policy

	// NoWebFetch forbids all external I/O; it forces AutoAdd to
	// disabled regardless of the requested policy.
	NoWebFetch bool

	// NoCache bypasses the metadata cache.
	NoCache bool

	// AllowFailures downgrades hard verifier findings to warnings. A
	// run that needed it never counts as a successful conversion.
	AllowFailures bool

	// Surface is the citation command spliced over resolved links
	// (default \citep).
	Surface string

	// MissThreshold tunes the matcher-health warning.
	MissThreshold int

	// Policy carries the stub/domain/org/temp-key lists.
	Policy bibgen.Policy

	// Debug writes intermediate artifacts (occurrences, match results,
	// pre-sanitizer bibliography) under OutputDir/debug.
	Debug bool

	// FetchTimeout bounds each auto-add call; FetchBudget the phase.
	FetchTimeout time.Duration
	FetchBudget  time.Duration
}

// DefaultOptions returns the standard strict-mode configuration for a
// manuscript and library path.
func DefaultOptions(markdownPath, libraryPath string) Options {
	cfg := autoadd.DefaultConfig(autoadd.PolicyDisabled)
	return Options{
		MarkdownPath:  markdownPath,
		LibraryPath:   libraryPath,
		LibraryFormat: library.FormatAuto,
		OutputDir:     "out",
		Strict:        true,
		AutoAdd:       autoadd.PolicyDisabled,
		Surface:       "",
		MissThreshold: match.DefaultMissThreshold,
		Policy:        bibgen.DefaultPolicy(),
		FetchTimeout:  cfg.PerCallTimeout,
		FetchBudget:   cfg.TotalBudget,
	}
}

// BaseName returns the manuscript name without extension, used to name
// the emitted artifacts.
func (o Options) BaseName() string {
	base := filepath.Base(o.MarkdownPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// EffectiveAutoAdd resolves the gateway policy after the NoWebFetch
// override.
func (o Options) EffectiveAutoAdd() autoadd.Policy {
	if o.NoWebFetch {
		return autoadd.PolicyDisabled
	}
	return o.AutoAdd
}

// policyFile is the optional on-disk override for the policy lists.
type policyFile struct {
	Policy        bibgen.Policy `yaml:",inline"`
	MissThreshold int           `yaml:"miss_threshold"`
}

// LoadPolicyFile merges .mdtex/policy.yaml (relative to the manuscript)
// into the options when present. A missing file is not an error; a
// malformed one is.
func (o *Options) LoadPolicyFile() error {
	path := filepath.Join(filepath.Dir(o.MarkdownPath), ".mdtex", "policy.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read policy file %s: %w", path, err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("parse policy file %s: %w", path, err)
	}

	// Lists extend the defaults rather than replacing them, so a policy
	// file only ever tightens the rules.
	o.Policy.DomainTitles = append(o.Policy.DomainTitles, pf.Policy.DomainTitles...)
	o.Policy.StubTitlePrefixes = append(o.Policy.StubTitlePrefixes, pf.Policy.StubTitlePrefixes...)
	o.Policy.OrgNameWords = append(o.Policy.OrgNameWords, pf.Policy.OrgNameWords...)
	o.Policy.TempKeyPrefixes = append(o.Policy.TempKeyPrefixes, pf.Policy.TempKeyPrefixes...)
	if pf.MissThreshold > 0 {
		o.MissThreshold = pf.MissThreshold
	}
	return nil
}
