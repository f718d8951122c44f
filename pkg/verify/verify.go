// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package verify

import (
	"bytes"
	"fmt"
	gotok "go/token"
	"log/slog"
	"sort"
	"strings"

	"github.com/jschaf/bibtex/ast"
	"github.com/jschaf/bibtex/parser"
	"mvdan.cc/xurls/v2"

	"github.com/kraklabs/mdtex/pkg/bibgen"
)

// Finding classes.
const (
	ClassHard = "hard"
	ClassSoft = "soft"
)

// Finding kinds.
const (
	KindUnresolvedMarker = "unresolved_marker"
	KindTempKey          = "temp_key"
	KindStubTitle        = "stub_title"
	KindDomainTitle      = "domain_title"
	KindSuspectAuthor    = "suspect_author"
	KindKeyMismatch      = "key_mismatch"
)

// unresolvedMarkers are the surfaces BibTeX/natbib render for citations
// they could not resolve. Any one of them in the PDF text fails the run.
// The "(Unknown" and "(Anonymous" prefixes cover both the bare and the
// "(Unknown, n.d.)" forms without double counting.
var unresolvedMarkers = []string{
	"(?)",
	"[?]",
	"(Unknown",
	"(Anonymous",
}

// Finding is one verification defect.
type Finding struct {
	Class   string `json:"class"` // hard or soft
	Kind    string `json:"kind"`
	Detail  string `json:"detail"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Report is the structured verification outcome.
type Report struct {
	Findings []Finding `json:"findings,omitempty"`
	Hard     int       `json:"hard"`
	Soft     int       `json:"soft"`

	BBLKeys      []string `json:"bbl_keys,omitempty"`
	BibKeys      []string `json:"bib_keys,omitempty"`
	MissingInBBL []string `json:"missing_in_bbl,omitempty"`
	ExtraInBBL   []string `json:"extra_in_bbl,omitempty"`

	// PDFURLs are the URLs surfaced in the rendered text, kept for
	// post-mortem diagnosis of odd citation rendering.
	PDFURLs []string `json:"pdf_urls,omitempty"`
}

// Passed reports whether the artifacts are clean: a single hard finding
// fails verification.
func (r *Report) Passed() bool {
	return r.Hard == 0
}

func (r *Report) add(class, kind, detail, excerpt string) {
	r.Findings = append(r.Findings, Finding{Class: class, Kind: kind, Detail: detail, Excerpt: excerpt})
	if class == ClassHard {
		r.Hard++
	} else {
		r.Soft++
	}
}

// maxExcerpts bounds how many offending text snippets a single check
// records; past the first few they stop adding information.
const maxExcerpts = 5

// Verify checks the compiled artifacts against the emitted bibliography.
//
// bblContent is the compiled .bbl, pdfText the extracted PDF text (empty
// when no PDF is available, which skips the PDF checks), and bibText the
// .bib the pipeline emitted.
func Verify(bblContent, pdfText, bibText string, policy bibgen.Policy) (*Report, error) {
	report := &Report{}

	bbl, err := ParseBBL(bblContent)
	if err != nil {
		return nil, err
	}
	report.BBLKeys = bbl.Keys

	bibKeys, bibTitles, bibAuthors, err := parseBibKeys(bibText)
	if err != nil {
		return nil, err
	}
	report.BibKeys = bibKeys

	crossCheckKeys(report, bbl.Keys, bibKeys)

	// Key shape and entry quality checks over both artifacts.
	for _, key := range append(append([]string{}, bbl.Keys...), bibKeys...) {
		if policy.IsTempKey(key) {
			report.add(ClassHard, KindTempKey,
				fmt.Sprintf("citation key %q has a placeholder shape", key), "")
		}
	}
	for key, title := range bibTitles {
		if policy.IsDomainTitle(title) {
			report.add(ClassHard, KindDomainTitle,
				fmt.Sprintf("entry %s has bare-domain title %q", key, title), "")
		} else if policy.IsStubTitle(title) {
			report.add(ClassHard, KindStubTitle,
				fmt.Sprintf("entry %s has stub title %q", key, title), "")
		}
	}
	for key, author := range bibAuthors {
		for _, name := range strings.Split(author, " and ") {
			if bibgen.IsSuspectAuthor(name) {
				report.add(ClassHard, KindSuspectAuthor,
					fmt.Sprintf("entry %s has author %q", key, strings.TrimSpace(name)), "")
			}
		}
	}

	scanText(report, bbl.Text, "bbl")
	if pdfText != "" {
		scanText(report, pdfText, "pdf")
		report.PDFURLs = extractURLs(pdfText)
	}

	slog.Info("verify.done", "hard", report.Hard, "soft", report.Soft,
		"bbl_keys", len(bbl.Keys), "bib_keys", len(bibKeys))
	return report, nil
}

// crossCheckKeys asserts the .bbl and the emitted .bib agree on the key
// set: every emitted key appears in the compiled bibliography and vice
// versa.
func crossCheckKeys(report *Report, bblKeys, bibKeys []string) {
	inBBL := make(map[string]bool, len(bblKeys))
	for _, k := range bblKeys {
		inBBL[k] = true
	}
	inBib := make(map[string]bool, len(bibKeys))
	for _, k := range bibKeys {
		inBib[k] = true
	}

	for _, k := range bibKeys {
		if !inBBL[k] {
			report.MissingInBBL = append(report.MissingInBBL, k)
			report.add(ClassHard, KindKeyMismatch,
				fmt.Sprintf("emitted key %q never made it into the compiled bibliography", k), "")
		}
	}
	for _, k := range bblKeys {
		if !inBib[k] {
			report.ExtraInBBL = append(report.ExtraInBBL, k)
			report.add(ClassHard, KindKeyMismatch,
				fmt.Sprintf("compiled bibliography contains key %q that was never emitted", k), "")
		}
	}
}

// scanText looks for unresolved-citation markers in an artifact's text.
func scanText(report *Report, text, artifact string) {
	for _, marker := range unresolvedMarkers {
		count := strings.Count(text, marker)
		if count == 0 {
			continue
		}
		excerpts := collectExcerpts(text, marker, maxExcerpts)
		for i := 0; i < count && i < maxExcerpts; i++ {
			report.add(ClassHard, KindUnresolvedMarker,
				fmt.Sprintf("%s contains unresolved marker %q", artifact, marker), excerpts[i])
		}
		if count > maxExcerpts {
			report.add(ClassHard, KindUnresolvedMarker,
				fmt.Sprintf("%s contains %d further occurrences of %q", artifact, count-maxExcerpts, marker), "")
		}
	}
}

// collectExcerpts returns up to max context windows around marker hits.
func collectExcerpts(text, marker string, max int) []string {
	var excerpts []string
	offset := 0
	for len(excerpts) < max {
		i := strings.Index(text[offset:], marker)
		if i < 0 {
			break
		}
		pos := offset + i
		lo := pos - 40
		if lo < 0 {
			lo = 0
		}
		hi := pos + len(marker) + 40
		if hi > len(text) {
			hi = len(text)
		}
		excerpt := strings.Join(strings.Fields(text[lo:hi]), " ")
		excerpts = append(excerpts, excerpt)
		offset = pos + len(marker)
	}
	return excerpts
}

// parseBibKeys re-parses the emitted .bib and returns its keys plus the
// title and author per key for the quality checks.
func parseBibKeys(bibText string) ([]string, map[string]string, map[string]string, error) {
	if strings.TrimSpace(bibText) == "" {
		return nil, nil, nil, nil
	}
	f, err := parser.ParseFile(gotok.NewFileSet(), "", bytes.NewReader([]byte(bibText)), 0)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("re-parse emitted bibliography: %w", err)
	}

	var keys []string
	titles := make(map[string]string)
	authors := make(map[string]string)
	for _, decl := range f.Entries {
		bib, ok := decl.(*ast.BibDecl)
		if !ok {
			continue
		}
		keys = append(keys, bib.Key.Name)
		for _, tag := range bib.Tags {
			switch strings.ToLower(tag.Name) {
			case "title":
				titles[bib.Key.Name] = flattenExpr(tag.Value)
			case "author":
				authors[bib.Key.Name] = flattenExpr(tag.Value)
			}
		}
	}
	return keys, titles, authors, nil
}

func flattenExpr(x ast.Expr) string {
	switch v := x.(type) {
	case *ast.UnparsedText:
		return v.Value
	case *ast.ConcatExpr:
		return flattenExpr(v.X) + flattenExpr(v.Y)
	case *ast.Ident:
		return v.Name
	default:
		return ""
	}
}

// extractURLs pulls the URLs surfaced in the PDF text, deduplicated and
// sorted, for the diagnostic section of the report.
func extractURLs(text string) []string {
	rx := xurls.Strict()
	found := rx.FindAllString(text, -1)
	seen := make(map[string]bool, len(found))
	var urls []string
	for _, u := range found {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls
}
