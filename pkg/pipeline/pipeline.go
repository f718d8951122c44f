// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kraklabs/mdtex/internal/bootstrap"
	"github.com/kraklabs/mdtex/internal/contract"
	"github.com/kraklabs/mdtex/internal/errors"
	"github.com/kraklabs/mdtex/internal/output"
	"github.com/kraklabs/mdtex/pkg/autoadd"
	"github.com/kraklabs/mdtex/pkg/bibgen"
	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/library"
	"github.com/kraklabs/mdtex/pkg/match"
	"github.com/kraklabs/mdtex/pkg/verify"
)

// Deps are the pipeline's injected collaborators. Zero values select the
// defaults: the built-in wrap converter, no compiler (verification then
// waits for the standalone verify command), the Zotero writer from
// environment credentials, and a plain HTTP client.
type Deps struct {
	Converter BodyConverter
	Compiler  Compiler
	Writer    autoadd.LibraryWriter
	Client    autoadd.HTTPDoer
}

// Run executes the pipeline for one manuscript.
//
// The returned report is always non-nil. Once the output workspace is
// prepared it is persisted to OutputDir/report.json on success and on
// failure; when the workspace cannot be prepared, no report file is
// written. A non-nil error is a *errors.UserError carrying
// the exit code for the CLI.
func Run(ctx context.Context, opts Options, deps Deps) (*Report, *errors.UserError) {
	report := &Report{Phase: PhaseStart}
	reportPath := filepath.Join(opts.OutputDir, "report.json")

	if deps.Converter == nil {
		deps.Converter = WrapConverter{}
	}
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: opts.FetchTimeout}
	}

	if _, err := bootstrap.PrepareWorkspace(bootstrap.WorkspaceConfig{
		OutputDir: opts.OutputDir,
		Debug:     opts.Debug,
	}, nil); err != nil {
		uerr := errors.NewInternalError("Cannot prepare output workspace", err.Error(),
			"Check permissions on the output path", err)
		report.Phase = PhaseFailure
		report.Error = uerr.Error()
		recordRun(PhaseStart)
		return report, uerr
	}

	fail := func(phase string, err *errors.UserError) (*Report, *errors.UserError) {
		report.Phase = PhaseFailure
		report.Error = err.Error()
		report.write(reportPath)
		recordRun(phase)
		slog.Error("pipeline.failed", "phase", phase, "err", err.Error())
		return report, err
	}

	// Loaded: the library snapshot is built once and treated read-only
	// for the rest of the run.
	phaseStart := time.Now()
	snap, err := library.Load(opts.LibraryPath, opts.LibraryFormat, opts.Strict)
	if err != nil {
		cause := fmt.Sprintf("loading %s failed: %v", opts.LibraryPath, err)
		fix := "Check the path, or re-export the library from your reference manager"
		if stderrors.Is(err, library.ErrEmptyLibrary) {
			fix = "The export parsed but holds no bibliographic items; re-export including all collections, or pass --no-strict to proceed without a library"
		}
		return fail(PhaseLoaded, errors.NewLibraryError("Cannot load reference library", cause, fix, err))
	}
	report.Phase = PhaseLoaded
	report.Library.Path = opts.LibraryPath
	report.Library.Stats = snap.Stats()
	report.Library.Duplicates = snap.Duplicates
	recordPhase(PhaseLoaded, time.Since(phaseStart))

	// Extracted.
	phaseStart = time.Now()
	src, err := os.ReadFile(opts.MarkdownPath)
	if err != nil {
		return fail(PhaseExtracted, errors.NewExtractionError("Cannot read Markdown source",
			err.Error(), "Check the manuscript path", err))
	}
	if res := contract.ValidateSource(src); !res.OK {
		return fail(PhaseExtracted, errors.NewExtractionError("Manuscript failed input validation",
			res.Message, "Pass the actual Markdown manuscript, or raise MDTEX_MAX_SOURCE_BYTES", nil))
	}
	occs, err := citation.Extract(src)
	if err != nil {
		return fail(PhaseExtracted, errors.NewExtractionError("Cannot extract citations",
			err.Error(), "The Markdown did not parse cleanly; check for truncated link constructs", err))
	}
	report.Phase = PhaseExtracted
	report.Extraction.Occurrences = len(occs)
	recordOccurrences(len(occs))
	recordPhase(PhaseExtracted, time.Since(phaseStart))

	// Matched.
	phaseStart = time.Now()
	matcher := match.New(snap, match.WithMissThreshold(opts.MissThreshold))
	bound := make(map[int]*library.Record)
	missed := make(map[int]citation.Occurrence)
	for i, occ := range occs {
		res := matcher.Match(occ)
		if res.Matched() {
			bound[i] = res.Record
		} else {
			missed[i] = occ
			report.Match.Misses = append(report.Match.Misses, res)
		}
	}
	matcher.LogSummary()
	report.Phase = PhaseMatched
	report.Match.Stats = matcher.Stats()
	report.Match.Warnings = matcher.Warnings()
	recordPhase(PhaseMatched, time.Since(phaseStart))

	// AutoAdded: only occurrences the matcher missed go near the
	// network. Dry-run computes the plan but leaves the occurrences
	// unresolved; only real mode binds fetched records.
	phaseStart = time.Now()
	policy := opts.EffectiveAutoAdd()
	report.AutoAdd.Policy = string(policy)
	if policy != autoadd.PolicyDisabled && len(missed) > 0 {
		writer := deps.Writer
		if writer == nil && policy == autoadd.PolicyReal {
			if zw := autoadd.NewZoteroWriter(deps.Client); zw != nil {
				writer = zw
			} else {
				slog.Warn("autoadd.credentials.missing", "fallback", "dry-run")
				policy = autoadd.PolicyDryRun
				report.AutoAdd.Policy = string(policy) + " (credentials missing)"
			}
		}

		var cache *autoadd.Cache
		if !opts.NoCache {
			cache = autoadd.OpenCache(autoadd.DefaultCachePath())
		}

		cfg := autoadd.DefaultConfig(policy)
		cfg.PerCallTimeout = opts.FetchTimeout
		cfg.TotalBudget = opts.FetchBudget
		gateway := autoadd.New(cfg, autoadd.DefaultResolvers(deps.Client, cfg.MaxAttempts), writer, cache)

		resolved := gateway.AddBatch(ctx, missed)
		if policy == autoadd.PolicyReal {
			for i, rec := range resolved {
				rec.EnsureID(i)
				bound[i] = rec
				delete(missed, i)
			}
			report.AutoAdd.Resolved = len(resolved)
		}
		report.AutoAdd.Plan = gateway.Plan()

		if cache != nil {
			if err := cache.Save(); err != nil {
				slog.Warn("autoadd.cache.save", "err", err)
			}
		}
	}
	report.Phase = PhaseAutoAdded
	recordPhase(PhaseAutoAdded, time.Since(phaseStart))

	// Unresolved gate.
	if len(missed) > 0 {
		recordUnresolved(len(missed))
		if opts.Strict {
			first := firstMissed(missed)
			return fail(PhaseMatched, errors.NewUnresolvedError(
				"Unresolved citations in strict mode",
				fmt.Sprintf("%q (%s) did not match any library record; %d unresolved in total",
					first.Text, first.RawURL, len(missed)),
				"Add the missing references to your library, enable --auto-add real, or rerun with --no-strict"))
		}
		slog.Warn("pipeline.unresolved", "count", len(missed))
	}

	// Emitted: records in first-citation order feed the key generator so
	// collision suffixes are stable run to run.
	phaseStart = time.Now()
	used := make([]*library.Record, 0, len(bound))
	for _, i := range sortedIndices(bound) {
		used = append(used, bound[i])
	}
	emitted, err := bibgen.Emit(used, opts.Policy)
	if err != nil {
		return fail(PhaseEmitted, errors.NewInternalError("Bibliography emission failed",
			err.Error(), "This is a bug; please report it", err))
	}
	report.Phase = PhaseEmitted
	report.Emission.Entries = len(emitted.Entries)
	for _, e := range emitted.Entries {
		report.Emission.Keys = append(report.Emission.Keys, e.Key)
	}
	recordPhase(PhaseEmitted, time.Since(phaseStart))

	// Sanitized.
	phaseStart = time.Now()
	sanitized, sanReport, err := bibgen.Sanitize(emitted.Text, snap, opts.Policy)
	if err != nil {
		return fail(PhaseSanitized, errors.NewInternalError("Bibliography sanitizing failed",
			err.Error(), "This is a bug; please report it", err))
	}
	report.Sanitize = sanReport
	report.Phase = PhaseSanitized
	recordPhase(PhaseSanitized, time.Since(phaseStart))

	if opts.Debug {
		writeDebugArtifacts(opts, occs, report, emitted.Text)
	}

	if hard := sanReport.HardUnrepaired(); hard > 0 && opts.Strict && !opts.AllowFailures {
		quarantine(opts, sanitized, nil)
		return fail(PhaseSanitized, errors.NewVerificationError(
			"Bibliography quality gate failed",
			fmt.Sprintf("%d entries have unrepairable defects (stub or domain titles, placeholder authors); first: %s",
				hard, firstOrNone(sanReport.NeedsReview)),
			"Fix the offending library entries, or rerun with --allow-failures to proceed anyway", nil))
	}

	// Rewritten.
	phaseStart = time.Now()
	keys := make(map[int]string, len(bound))
	for i, rec := range bound {
		key, ok := emitted.Keys[rec.ID]
		if !ok {
			return fail(PhaseRewritten, errors.NewInternalError("Binding lost its emitted key",
				fmt.Sprintf("occurrence %d resolved to record %s but no key was emitted for it", i, rec.ID),
				"This is a bug; please report it", nil))
		}
		keys[i] = key
	}
	rewritten, replaced, err := citation.Replace(src, occs, keys, opts.Surface)
	if err != nil {
		return fail(PhaseRewritten, errors.NewInternalError("Citation replacement failed",
			err.Error(), "This is a bug; please report it", err))
	}
	if replaced != len(bound) {
		return fail(PhaseRewritten, errors.NewInternalError("Replacement count mismatch",
			fmt.Sprintf("replaced %d spans but %d occurrences were resolved", replaced, len(bound)),
			"This is a bug; please report it", nil))
	}
	report.Phase = PhaseRewritten
	report.Emission.Replaced = replaced
	recordPhase(PhaseRewritten, time.Since(phaseStart))

	// Write the primary outputs.
	base := opts.BaseName()
	texBody, err := deps.Converter.Convert(rewritten, base)
	if err != nil {
		return fail(PhaseRewritten, errors.NewInternalError("Body conversion failed",
			err.Error(), "", err))
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fail(PhaseRewritten, errors.NewInternalError("Cannot create output directory",
			err.Error(), "Check permissions on the output path", err))
	}
	bibPath := filepath.Join(opts.OutputDir, base+".bib")
	texPath := filepath.Join(opts.OutputDir, base+".tex")
	if err := os.WriteFile(bibPath, []byte(sanitized), 0o644); err != nil {
		return fail(PhaseRewritten, errors.NewInternalError("Cannot write bibliography", err.Error(), "", err))
	}
	if err := os.WriteFile(texPath, texBody, 0o644); err != nil {
		return fail(PhaseRewritten, errors.NewInternalError("Cannot write LaTeX source", err.Error(), "", err))
	}
	report.Outputs.Bib = bibPath
	report.Outputs.Tex = texPath

	// Compiled (external collaborator) and Verified.
	if deps.Compiler != nil {
		phaseStart = time.Now()
		bblPath, pdfPath, err := deps.Compiler.Compile(ctx, texPath)
		if err != nil {
			return fail(PhaseCompiled, errors.NewInternalError("LaTeX compilation failed",
				err.Error(), "Inspect the compiler log in the output directory", err))
		}
		report.Phase = PhaseCompiled
		recordPhase(PhaseCompiled, time.Since(phaseStart))

		phaseStart = time.Now()
		verifyReport, uerr := VerifyArtifacts(bblPath, pdfPath, sanitized, opts.Policy)
		if uerr != nil {
			return fail(PhaseVerified, uerr)
		}
		report.Verify = verifyReport
		report.Phase = PhaseVerified
		recordPhase(PhaseVerified, time.Since(phaseStart))

		if !verifyReport.Passed() {
			if opts.AllowFailures {
				report.AllowedFailures = true
				slog.Warn("verify.hard.downgraded", "hard", verifyReport.Hard)
			} else {
				return fail(PhaseVerified, errors.NewVerificationError(
					"Compiled artifacts failed verification",
					fmt.Sprintf("%d hard findings (first: %s)", verifyReport.Hard, firstFinding(verifyReport)),
					"Inspect report.json for the offending entries", nil))
			}
		}
	}

	report.Phase = PhaseSuccess
	report.Success = !report.AllowedFailures
	report.write(reportPath)
	recordRun(PhaseSuccess)
	slog.Info("pipeline.success", "occurrences", len(occs), "entries", report.Emission.Entries)
	return report, nil
}

// VerifyArtifacts runs the post-compile verifier over existing artifacts.
// Shared by the pipeline and the standalone verify command.
func VerifyArtifacts(bblPath, pdfPath, bibText string, policy bibgen.Policy) (*verify.Report, *errors.UserError) {
	bblContent, err := os.ReadFile(bblPath)
	if err != nil {
		return nil, errors.NewVerificationError("Cannot read compiled bibliography",
			err.Error(), "Run the LaTeX toolchain first, or point --bbl at the right file", err)
	}

	pdfText := ""
	if pdfPath != "" {
		pdfText, err = verify.ExtractPDFText(pdfPath)
		if err != nil {
			return nil, errors.NewVerificationError("Cannot extract PDF text",
				err.Error(), "Check that the PDF compiled completely", err)
		}
	}

	report, err := verify.Verify(string(bblContent), pdfText, bibText, policy)
	if err != nil {
		return nil, errors.NewVerificationError("Verification failed to run",
			err.Error(), "", err)
	}
	return report, nil
}

// quarantine writes rejected outputs under OutputDir/quarantine so a
// failed run never overwrites prior successful artifacts.
func quarantine(opts Options, bibText string, texBody []byte) {
	dir := filepath.Join(opts.OutputDir, "quarantine")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	base := opts.BaseName()
	if bibText != "" {
		_ = os.WriteFile(filepath.Join(dir, base+".bib"), []byte(bibText), 0o644)
	}
	if texBody != nil {
		_ = os.WriteFile(filepath.Join(dir, base+".tex"), texBody, 0o644)
	}
}

// writeDebugArtifacts persists the intermediate state for post-mortems.
func writeDebugArtifacts(opts Options, occs []citation.Occurrence, report *Report, preSanitize string) {
	dir := filepath.Join(opts.OutputDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	writeJSON := func(name string, data any) {
		path := filepath.Join(dir, name)
		if err := output.WriteJSONFile(path, data); err != nil {
			slog.Warn("debug.write.failed", "path", path, "err", err)
		}
	}
	writeJSON("occurrences.json", occs)
	writeJSON("match.json", report.Match)
	_ = os.WriteFile(filepath.Join(dir, "pre_sanitize.bib"), []byte(preSanitize), 0o644)
}

func sortedIndices(m map[int]*library.Record) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func firstMissed(missed map[int]citation.Occurrence) citation.Occurrence {
	lowest := -1
	for i := range missed {
		if lowest < 0 || i < lowest {
			lowest = i
		}
	}
	return missed[lowest]
}

func firstOrNone(keys []string) string {
	if len(keys) == 0 {
		return "(none)"
	}
	return keys[0]
}

func firstFinding(r *verify.Report) string {
	for _, f := range r.Findings {
		if f.Class == verify.ClassHard {
			return f.Detail
		}
	}
	return "(none)"
}
