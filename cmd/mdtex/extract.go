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
	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
)

// runExtract executes the 'extract' CLI command: a debugging aid that
// lists the academic citations found in a manuscript without touching
// any library.
func runExtract(args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "Machine-readable output")
	noColor := fs.Bool("no-color", false, "Disable colored output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: mdtex extract <paper.md> [--json]

Lists every academic citation occurrence with its URL, canonical form,
and the identifiers it carries. Useful for checking what the matcher
will see before running a full conversion.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	ui.InitColors(*noColor)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Expected exactly one Markdown file",
			fmt.Sprintf("got %d positional arguments", fs.NArg()),
			"Run: mdtex extract paper.md"), *jsonOut)
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		errors.FatalError(errors.NewExtractionError("Cannot read Markdown source",
			err.Error(), "Check the manuscript path", err), *jsonOut)
	}

	occs, err := citation.Extract(src)
	if err != nil {
		errors.FatalError(errors.NewExtractionError("Cannot extract citations",
			err.Error(), "", err), *jsonOut)
	}

	if *jsonOut {
		if err := output.JSON(occs); err != nil {
			errors.FatalError(err, true)
		}
		return
	}

	ui.Header(fmt.Sprintf("%d citation occurrences", len(occs)))
	for i, occ := range occs {
		fmt.Printf("%3d  %s\n", i+1, occ.Text)
		fmt.Printf("     %s\n", ui.DimText(occ.RawURL))
		if doi := ident.ExtractDOI(occ.RawURL); doi != "" {
			fmt.Printf("     doi: %s\n", doi)
		}
		if a, ok := ident.ExtractArxiv(occ.RawURL); ok {
			fmt.Printf("     arxiv: %s\n", a.String())
		}
		if isbn := ident.ExtractISBN(occ.RawURL); isbn != "" {
			fmt.Printf("     isbn: %s\n", isbn)
		}
	}
}
