// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/mdtex/internal/errors"
	mdtest "github.com/kraklabs/mdtex/internal/testing"
)

func runOpts(t *testing.T) Options {
	t.Helper()
	mdPath, rdfPath, outDir := mdtest.SetupManuscript(t)
	opts := DefaultOptions(mdPath, rdfPath)
	opts.OutputDir = outDir
	return opts
}

func TestRun_FullConversion(t *testing.T) {
	opts := runOpts(t)

	report, uerr := Run(context.Background(), opts, Deps{})
	require.Nil(t, uerr)
	require.NotNil(t, report)

	assert.Equal(t, PhaseSuccess, report.Phase)
	assert.True(t, report.Success)
	assert.Equal(t, 4, report.Extraction.Occurrences)
	assert.Equal(t, 4, report.Emission.Entries)
	assert.Equal(t, 4, report.Emission.Replaced)
	assert.Empty(t, report.Match.Misses)

	// The emitted bibliography carries the expected keys.
	bib, err := os.ReadFile(report.Outputs.Bib)
	require.NoError(t, err)
	for _, key := range []string{
		"doi_10_1145_3618394",
		"isbn_1138021016",
		"arxiv_2401_12345",
	} {
		assert.Contains(t, string(bib), "{"+key+",")
	}
	assert.Contains(t, string(bib), "author = {{{European Commission}}},")
	assert.Contains(t, string(bib), "eprint = {2401.12345},")

	// The rewritten document binds every citation and keeps the plain
	// hyperlink.
	tex, err := os.ReadFile(report.Outputs.Tex)
	require.NoError(t, err)
	assert.Contains(t, string(tex), `\citep{isbn_1138021016}`)
	assert.Contains(t, string(tex), `\citep{doi_10_1145_3618394}`)
	assert.Contains(t, string(tex), `\citep{arxiv_2401_12345}`)
	assert.Contains(t, string(tex), "[the project page](https://example.com/project)")
	assert.Contains(t, string(tex), `\bibliography{paper}`)

	// report.json is always written.
	raw, err := os.ReadFile(filepath.Join(opts.OutputDir, "report.json"))
	require.NoError(t, err)
	var onDisk Report
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, PhaseSuccess, onDisk.Phase)
}

func TestRun_Deterministic(t *testing.T) {
	opts := runOpts(t)

	first, uerr := Run(context.Background(), opts, Deps{})
	require.Nil(t, uerr)
	firstBib, err := os.ReadFile(first.Outputs.Bib)
	require.NoError(t, err)

	second, uerr := Run(context.Background(), opts, Deps{})
	require.Nil(t, uerr)
	secondBib, err := os.ReadFile(second.Outputs.Bib)
	require.NoError(t, err)

	assert.Equal(t, string(firstBib), string(secondBib))
	assert.Equal(t, first.Emission.Keys, second.Emission.Keys)
}

func TestRun_MissingLibraryExitsTwo(t *testing.T) {
	opts := runOpts(t)
	opts.LibraryPath = filepath.Join(t.TempDir(), "nope.rdf")

	report, uerr := Run(context.Background(), opts, Deps{})
	require.NotNil(t, uerr)
	assert.Equal(t, errors.ExitLibrary, uerr.ExitCode)
	assert.Equal(t, PhaseFailure, report.Phase)
}

func TestRun_MissingMarkdownExitsThree(t *testing.T) {
	opts := runOpts(t)
	opts.MarkdownPath = filepath.Join(t.TempDir(), "nope.md")

	_, uerr := Run(context.Background(), opts, Deps{})
	require.NotNil(t, uerr)
	assert.Equal(t, errors.ExitExtraction, uerr.ExitCode)
}

func TestRun_UnresolvedStrictExitsFour(t *testing.T) {
	opts := runOpts(t)
	md := mdtest.SampleMarkdown + "\nAlso [Obscure (2023)](https://example.invalid/paper).\n"
	opts.MarkdownPath = mdtest.WriteFixture(t, filepath.Dir(opts.MarkdownPath), "paper2.md", md)

	report, uerr := Run(context.Background(), opts, Deps{})
	require.NotNil(t, uerr)
	assert.Equal(t, errors.ExitUnresolved, uerr.ExitCode)

	// The miss diagnostics name the occurrence, its URL, and the
	// strategies attempted.
	require.Len(t, report.Match.Misses, 1)
	miss := report.Match.Misses[0]
	assert.Equal(t, "Obscure (2023)", miss.Occurrence.Text)
	assert.Equal(t, "https://example.invalid/paper", miss.Occurrence.RawURL)
	assert.Len(t, miss.Attempts, 4)

	// No .tex or .bib at the primary output path.
	_, err := os.Stat(filepath.Join(opts.OutputDir, "paper2.bib"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(opts.OutputDir, "paper2.tex"))
	assert.True(t, os.IsNotExist(err))

	// But report.json exists for inspection.
	_, err = os.Stat(filepath.Join(opts.OutputDir, "report.json"))
	assert.NoError(t, err)
}

func TestRun_UnresolvedRelaxedProceeds(t *testing.T) {
	opts := runOpts(t)
	md := mdtest.SampleMarkdown + "\nAlso [Obscure (2023)](https://example.invalid/paper).\n"
	opts.MarkdownPath = mdtest.WriteFixture(t, filepath.Dir(opts.MarkdownPath), "paper2.md", md)
	opts.Strict = false

	report, uerr := Run(context.Background(), opts, Deps{})
	require.Nil(t, uerr)
	assert.Equal(t, PhaseSuccess, report.Phase)

	// The unresolved citation survives verbatim in the output.
	tex, err := os.ReadFile(report.Outputs.Tex)
	require.NoError(t, err)
	assert.Contains(t, string(tex), "[Obscure (2023)](https://example.invalid/paper)")
}

func TestRun_DOIVariantsShareOneEntry(t *testing.T) {
	opts := runOpts(t)
	md := `Both [Smith (2024)](https://doi.org/10.1145/3618394) and
[Smith (2024)](http://dx.doi.org/10.1145/3618394/) cite the same work.
`
	opts.MarkdownPath = mdtest.WriteFixture(t, filepath.Dir(opts.MarkdownPath), "variants.md", md)

	report, uerr := Run(context.Background(), opts, Deps{})
	require.Nil(t, uerr)

	assert.Equal(t, 2, report.Extraction.Occurrences)
	assert.Equal(t, 1, report.Emission.Entries)
	assert.Equal(t, 2, report.Emission.Replaced)

	tex, err := os.ReadFile(report.Outputs.Tex)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(tex), `\citep{doi_10_1145_3618394}`))
}

func TestRun_DebugArtifacts(t *testing.T) {
	opts := runOpts(t)
	opts.Debug = true

	_, uerr := Run(context.Background(), opts, Deps{})
	require.Nil(t, uerr)

	for _, name := range []string{"occurrences.json", "match.json", "pre_sanitize.bib"} {
		_, err := os.Stat(filepath.Join(opts.OutputDir, "debug", name))
		assert.NoError(t, err, "missing debug artifact %s", name)
	}
}

func TestRun_ReportWrittenOnFailure(t *testing.T) {
	opts := runOpts(t)
	opts.LibraryPath = filepath.Join(t.TempDir(), "missing.rdf")

	_, uerr := Run(context.Background(), opts, Deps{})
	require.NotNil(t, uerr)

	raw, err := os.ReadFile(filepath.Join(opts.OutputDir, "report.json"))
	require.NoError(t, err)
	var report Report
	require.NoError(t, json.Unmarshal(raw, &report))
	assert.Equal(t, PhaseFailure, report.Phase)
	assert.NotEmpty(t, report.Error)
}

func TestWrapConverter(t *testing.T) {
	out, err := WrapConverter{}.Convert([]byte("Body \\citep{k}."), "paper")
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `\usepackage{natbib}`)
	assert.Contains(t, s, "Body \\citep{k}.")
	assert.Contains(t, s, `\bibliography{paper}`)

	_, err = WrapConverter{}.Convert([]byte("x"), "")
	assert.Error(t, err)
}

func TestOptions_EffectiveAutoAdd(t *testing.T) {
	opts := DefaultOptions("a.md", "l.rdf")
	opts.AutoAdd = "real"
	opts.NoWebFetch = true
	assert.Equal(t, "disabled", string(opts.EffectiveAutoAdd()))
}

func TestOptions_LoadPolicyFile(t *testing.T) {
	dir := t.TempDir()
	md := mdtest.WriteFixture(t, dir, "paper.md", mdtest.SampleMarkdown)
	mdtest.WriteFixture(t, dir, ".mdtex/policy.yaml", `
domain_titles:
  - internal.example
temp_key_prefixes:
  - scratch_
miss_threshold: 9
`)

	opts := DefaultOptions(md, "library.rdf")
	require.NoError(t, opts.LoadPolicyFile())

	assert.True(t, opts.Policy.IsDomainTitle("internal.example"))
	assert.True(t, opts.Policy.IsTempKey("scratch_abc"))
	// Defaults survive the merge.
	assert.True(t, opts.Policy.IsTempKey("tmp_abc"))
	assert.Equal(t, 9, opts.MissThreshold)
}

func TestOptions_LoadPolicyFile_MissingIsFine(t *testing.T) {
	opts := DefaultOptions(filepath.Join(t.TempDir(), "paper.md"), "l.rdf")
	assert.NoError(t, opts.LoadPolicyFile())
}

func TestOptions_BaseName(t *testing.T) {
	opts := DefaultOptions("/path/to/my-paper.md", "l.rdf")
	assert.Equal(t, "my-paper", opts.BaseName())
}
