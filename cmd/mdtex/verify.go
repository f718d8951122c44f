// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/mdtex/internal/errors"
	"github.com/kraklabs/mdtex/internal/output"
	"github.com/kraklabs/mdtex/internal/ui"
	"github.com/kraklabs/mdtex/pkg/bibgen"
	"github.com/kraklabs/mdtex/pkg/pipeline"
	"github.com/kraklabs/mdtex/pkg/verify"
)

// runVerify executes the 'verify' CLI command: the post-compile checks
// over already-compiled artifacts, without rerunning the pipeline.
//
// Flags:
//   - --bbl: compiled bibliography (required)
//   - --pdf: rendered PDF (optional; skips the PDF text checks when absent)
//   - --bib: the emitted .bib to cross-check keys against (required)
//   - --json: machine-readable report on stdout
func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	bblPath := fs.String("bbl", "", "Compiled .bbl file")
	pdfPath := fs.String("pdf", "", "Rendered PDF (optional)")
	bibPath := fs.String("bib", "", "Emitted .bib to cross-check against")
	jsonOut := fs.Bool("json", false, "Machine-readable report output")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	debug := fs.Bool("debug", false, "Debug logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mdtex verify --bbl <paper.bbl> --pdf <paper.pdf> --bib <paper.bib>

Checks the compiled artifacts for unresolved citation markers, temp keys,
stub titles, and key mismatches between the .bib and the .bbl. The LaTeX
compiler's exit code proves nothing; the artifacts do.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	ui.InitColors(*noColor)

	logLevel := slog.LevelWarn
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if *bblPath == "" || *bibPath == "" {
		errors.FatalError(errors.NewInputError(
			"Missing required flags",
			"verify needs at least --bbl and --bib",
			"Run: mdtex verify --bbl out/paper.bbl --pdf out/paper.pdf --bib out/paper.bib"), *jsonOut)
	}

	bibText, err := os.ReadFile(*bibPath)
	if err != nil {
		errors.FatalError(errors.NewVerificationError("Cannot read emitted bibliography",
			err.Error(), "Point --bib at the .bib the conversion emitted", err), *jsonOut)
	}

	report, uerr := pipeline.VerifyArtifacts(*bblPath, *pdfPath, string(bibText), bibgen.DefaultPolicy())
	if uerr != nil {
		errors.FatalError(uerr, *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(report); err != nil {
			errors.FatalError(err, true)
		}
	} else {
		printVerifySummary(report)
	}

	if !report.Passed() {
		os.Exit(errors.ExitVerification)
	}
}

func printVerifySummary(report *verify.Report) {
	ui.Header("mdtex verification")
	fmt.Printf("%s %s in .bbl, %s in .bib\n", ui.Label("Keys:"),
		ui.CountText(len(report.BBLKeys)), ui.CountText(len(report.BibKeys)))

	for _, f := range report.Findings {
		if f.Class == "hard" {
			ui.Errorf("[%s] %s", f.Kind, f.Detail)
		} else {
			ui.Warningf("[%s] %s", f.Kind, f.Detail)
		}
		if f.Excerpt != "" {
			fmt.Printf("    %s\n", ui.DimText("..."+f.Excerpt+"..."))
		}
	}

	if report.Passed() {
		ui.Success("no unresolved markers, no defect patterns")
	} else {
		ui.Errorf("%d hard findings", report.Hard)
	}
}
