// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package citation finds academic citations in Markdown and rewrites them
// into LaTeX citation commands.
//
// Both directions operate on the goldmark AST, never on raw string
// scanning: extraction walks link nodes and records their source spans,
// and replacement splices citation commands over exactly those spans.
// Reference-style links ([text][ref] plus a definition) are resolved by
// the parser before classification.
package citation

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/kraklabs/mdtex/pkg/ident"
)

// Occurrence is one inline academic citation found in the source Markdown.
//
// Occurrences are immutable after extraction. Start and End delimit the
// full link span in the source ([text](url) inclusive), retained for
// diagnostics and for the surgical rewrite in Replace.
type Occurrence struct {
	// Text is the bracketed display text as authored, e.g. "Fletcher (2016)".
	Text string `json:"text"`

	// RawURL is the link destination as authored.
	RawURL string `json:"raw_url"`

	// CanonicalURL is the normalized lookup form of RawURL, or "" when
	// the URL cannot be canonicalized. The matcher handles the empty case.
	CanonicalURL string `json:"canonical_url,omitempty"`

	// Start and End are byte offsets of the link span in the source.
	Start int `json:"start"`
	End   int `json:"end"`
}

// Position returns a short human-readable span description.
func (o Occurrence) Position() string {
	return fmt.Sprintf("bytes %d-%d", o.Start, o.End)
}

// yearPattern matches a four-digit year with an optional a/b/c
// disambiguation suffix inside the link text.
var yearPattern = regexp.MustCompile(`\b(1[5-9]\d{2}|20\d{2})[abc]?\b`)

// Extract parses the Markdown source and returns all academic citation
// occurrences in source order.
//
// A link is classified as an academic citation when its display text
// contains a four-digit year and either the text carries an author token
// (a capitalized word or "et al." before the year) or the URL resolves to
// an academic identifier (DOI or arXiv). Ordinary hyperlinks are left
// untouched and not returned.
func Extract(src []byte) ([]Occurrence, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var occs []Occurrence
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}

		display := linkText(link, src)
		rawURL := string(link.Destination)
		if display == "" || rawURL == "" {
			return ast.WalkContinue, nil
		}

		if !isAcademicCitation(display, rawURL) {
			slog.Debug("extract.skip", "text", display, "url", rawURL, "reason", "not an academic citation")
			return ast.WalkContinue, nil
		}

		start, end, ok := linkSpan(link, src)
		if !ok {
			// A link whose span cannot be anchored in the source (should
			// not happen for parsed input) is a hard extraction failure:
			// losing it silently would violate the replacement count gate.
			return ast.WalkStop, fmt.Errorf("cannot locate source span for citation %q", display)
		}

		occ := Occurrence{
			Text:         display,
			RawURL:       rawURL,
			CanonicalURL: ident.NormalizeURL(rawURL),
			Start:        start,
			End:          end,
		}
		occs = append(occs, occ)
		slog.Debug("extract.occurrence", "text", display, "url", rawURL, "span", occ.Position())
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("extract.done", "occurrences", len(occs))
	return occs, nil
}

// linkText concatenates the text content of the link's descendants.
func linkText(link *ast.Link, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(link, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// isAcademicCitation applies the citation shape test to a link.
func isAcademicCitation(display, rawURL string) bool {
	loc := yearPattern.FindStringIndex(display)
	if loc == nil {
		return false
	}

	if hasAuthorToken(display[:loc[0]]) {
		return true
	}
	if ident.ExtractDOI(rawURL) != "" {
		return true
	}
	if _, ok := ident.ExtractArxiv(rawURL); ok {
		return true
	}
	return false
}

// hasAuthorToken reports whether the text before the year carries an
// author-like token: a word starting with an uppercase letter, or the
// "et al." marker.
func hasAuthorToken(prefix string) bool {
	if strings.Contains(prefix, "et al") {
		return true
	}
	for _, tok := range strings.Fields(prefix) {
		r := []rune(strings.TrimLeft(tok, "([\"'"))
		if len(r) > 0 && unicode.IsUpper(r[0]) {
			return true
		}
	}
	return false
}

// linkSpan locates the byte span of the full link construct in the
// source, anchored on the AST text segments: from the opening bracket
// before the first text segment to the closing delimiter of the
// destination (inline form) or the reference label (reference form).
func linkSpan(link *ast.Link, src []byte) (int, int, bool) {
	first, last := -1, -1
	_ = ast.Walk(link, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := n.(*ast.Text); ok {
			if first < 0 {
				first = t.Segment.Start
			}
			last = t.Segment.Stop
		}
		return ast.WalkContinue, nil
	})
	if first <= 0 || last < first || last > len(src) {
		return 0, 0, false
	}

	// Between the opening bracket and the first text segment (and between
	// the last segment and the closing bracket) only inline delimiters
	// can appear: emphasis and code span markers.
	start := first - 1
	for start > 0 && isInlineDelim(src[start]) {
		start--
	}
	if src[start] != '[' {
		return 0, 0, false
	}

	// After the link text the source continues with "](dest)" for inline
	// links, "][label]" for full reference links, or nothing further for
	// shortcut references.
	i := last
	for i < len(src) && isInlineDelim(src[i]) {
		i++
	}
	if i >= len(src) || src[i] != ']' {
		return 0, 0, false
	}
	i++
	if i < len(src) && src[i] == '(' {
		depth := 1
		for j := i + 1; j < len(src); j++ {
			switch src[j] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					return start, j + 1, true
				}
			case '\n':
				return 0, 0, false
			}
		}
		return 0, 0, false
	}
	if i < len(src) && src[i] == '[' {
		for j := i + 1; j < len(src); j++ {
			if src[j] == ']' {
				return start, j + 1, true
			}
			if src[j] == '\n' {
				break
			}
		}
		return 0, 0, false
	}
	// Shortcut reference: the span is just [text].
	return start, i, true
}

// isInlineDelim reports whether c is an inline markup delimiter that may
// sit between the link brackets and the text segments.
func isInlineDelim(c byte) bool {
	return c == '*' || c == '_' || c == '`' || c == '~'
}
