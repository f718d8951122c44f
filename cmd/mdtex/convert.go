// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/mdtex/internal/errors"
	"github.com/kraklabs/mdtex/internal/output"
	"github.com/kraklabs/mdtex/internal/ui"
	"github.com/kraklabs/mdtex/pkg/autoadd"
	"github.com/kraklabs/mdtex/pkg/library"
	"github.com/kraklabs/mdtex/pkg/pipeline"
)

// runConvert executes the 'convert' CLI command: the full pipeline from
// Markdown + library to LaTeX + sanitized bibliography.
//
// Flags:
//   - --rdf: reference library in RDF form (preferred)
//   - --bib: reference library in BibTeX form (lossy fallback)
//   - --output-dir: directory for .tex, .bib and report.json (default: out)
//   - --strict: fail-fast gates (default: true; --strict=false relaxes)
//   - --auto-add: disabled, dry-run, or real (default: disabled)
//   - --no-web-fetch: forbid all external I/O (implies --auto-add disabled)
//   - --no-cache: bypass the metadata cache
//   - --allow-failures: downgrade hard verifier findings to warnings
//   - --surface: citation command (default: \citep)
//   - --debug: write intermediate artifacts and debug logging
//   - --json: machine-readable error output
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	rdfPath := fs.String("rdf", "", "Reference library in RDF form (preferred)")
	bibPath := fs.String("bib", "", "Reference library in BibTeX form (lossy; RDF preferred)")
	outputDir := fs.String("output-dir", "out", "Directory for emitted artifacts and reports")
	strict := fs.Bool("strict", true, "Fail fast on any unresolved citation or quality defect")
	noStrict := fs.Bool("no-strict", false, "Disable the fail-fast gates (overrides --strict)")
	autoAddMode := fs.String("auto-add", "disabled", "Auto-add policy: disabled, dry-run, or real")
	noWebFetch := fs.Bool("no-web-fetch", false, "Forbid all external I/O (implies --auto-add disabled)")
	noCache := fs.Bool("no-cache", false, "Bypass the identifier and metadata caches")
	allowFailures := fs.Bool("allow-failures", false, "Downgrade hard verifier findings to warnings")
	surface := fs.String("surface", "", "Citation command for resolved links (default \\citep)")
	debug := fs.Bool("debug", false, "Debug logging and intermediate artifacts")
	jsonOut := fs.Bool("json", false, "Machine-readable error output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mdtex convert <paper.md> [options]

Converts the manuscript to LaTeX with every inline citation resolved
against the reference library and bound to a generated BibTeX entry.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	ui.InitColors(*noColor)

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Expected exactly one Markdown file",
			fmt.Sprintf("got %d positional arguments", fs.NArg()),
			"Run: mdtex convert paper.md --rdf library.rdf"), *jsonOut)
	}
	if *rdfPath == "" && *bibPath == "" {
		errors.FatalError(errors.NewInputError(
			"No reference library given",
			"convert needs --rdf (preferred) or --bib",
			"Export your library from Zotero as RDF and pass --rdf library.rdf"), *jsonOut)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	policy, err := autoadd.ParsePolicy(*autoAddMode)
	if err != nil {
		errors.FatalError(errors.NewInputError("Invalid --auto-add value", err.Error(),
			"Use one of: disabled, dry-run, real"), *jsonOut)
	}

	opts := pipeline.DefaultOptions(fs.Arg(0), *rdfPath)
	if *rdfPath == "" {
		opts.LibraryPath = *bibPath
		opts.LibraryFormat = library.FormatBibTeX
	}
	opts.OutputDir = *outputDir
	opts.Strict = *strict && !*noStrict
	opts.AutoAdd = policy
	opts.NoWebFetch = *noWebFetch
	opts.NoCache = *noCache
	opts.AllowFailures = *allowFailures
	opts.Surface = *surface
	opts.Debug = *debug

	if err := opts.LoadPolicyFile(); err != nil {
		errors.FatalError(errors.NewInputError("Invalid policy file", err.Error(),
			"Fix or remove .mdtex/policy.yaml"), *jsonOut)
	}

	// The active auto-add policy is always visible: the library is never
	// mutated without the user seeing that it could be.
	effective := opts.EffectiveAutoAdd()
	ui.Infof("auto-add policy: %s", effective)
	if effective == autoadd.PolicyReal {
		ui.Warning("auto-add real: validated missing references will be written to your library")
	}

	// Start Prometheus metrics endpoint (optional)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Graceful abort: the pipeline stops at the next gate and the
	// partial report still lands in the output directory.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("pipeline.abort", "reason", "signal")
		cancel()
	}()

	report, uerr := pipeline.Run(ctx, opts, pipeline.Deps{})
	if uerr != nil {
		if *jsonOut {
			_ = output.JSONError(uerr)
		} else {
			fmt.Fprint(os.Stderr, uerr.Format(*noColor))
			ui.Errorf("details in %s", report.Outputs.Report)
		}
		os.Exit(uerr.ExitCode)
	}

	printConvertSummary(report, *jsonOut)
}

// printConvertSummary renders the human (or JSON) run summary.
func printConvertSummary(report *pipeline.Report, jsonOut bool) {
	if jsonOut {
		if err := output.JSON(report); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Header("mdtex conversion")
	fmt.Printf("%s %s\n", ui.Label("Library:"), report.Library.Path)
	fmt.Printf("  records %s  dois %s  isbns %s  arxiv %s  urls %s\n",
		ui.CountText(report.Library.Stats.Records),
		ui.CountText(report.Library.Stats.DOIs),
		ui.CountText(report.Library.Stats.ISBNs),
		ui.CountText(report.Library.Stats.ArxivIDs),
		ui.CountText(report.Library.Stats.URLs))
	fmt.Printf("%s %s occurrences, %s entries emitted\n", ui.Label("Citations:"),
		ui.CountText(report.Extraction.Occurrences),
		ui.CountText(report.Emission.Entries))

	for _, w := range report.Match.Warnings {
		ui.Warning(w)
	}
	for _, d := range report.Library.Duplicates {
		ui.Warning(d.String())
	}

	if report.AllowedFailures {
		ui.Warning("completed with downgraded hard findings (--allow-failures); this is NOT a successful conversion")
	} else {
		ui.Successf("wrote %s and %s", report.Outputs.Tex, report.Outputs.Bib)
	}
	fmt.Printf("%s %s\n", ui.Label("Report:"), ui.DimText(report.Outputs.Report))
}
