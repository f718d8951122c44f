// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package library

import (
	"bytes"
	"fmt"
	gotok "go/token"
	"strings"

	"github.com/jschaf/bibtex"
	"github.com/jschaf/bibtex/ast"
	"github.com/jschaf/bibtex/parser"

	"github.com/kraklabs/mdtex/pkg/ident"
)

// parseBibTeX decodes a BibTeX export into reference records via the
// bibtex AST parser. BibTeX libraries are tolerated but lossy: Zotero's
// BibTeX export frequently drops URL and ISBN fields, which starves the
// ISBN and URL match strategies.
func parseBibTeX(raw []byte) ([]*Record, error) {
	f, err := parser.ParseFile(gotok.NewFileSet(), "", bytes.NewReader(raw), 0)
	if err != nil {
		return nil, fmt.Errorf("malformed BibTeX: %w", err)
	}

	biber := bibtex.New()
	entries, err := biber.Resolve(f)
	if err != nil {
		return nil, fmt.Errorf("resolve BibTeX entries: %w", err)
	}

	records := make([]*Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, recordFromEntry(e))
	}
	return records, nil
}

// recordFromEntry converts one resolved BibTeX entry to the uniform
// record shape.
func recordFromEntry(e bibtex.Entry) *Record {
	get := func(field string) string {
		expr, ok := e.Tags[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(exprText(expr))
	}

	rec := &Record{
		Type:      normalizeEntryType(e.Type),
		Title:     stripOuterBraces(get(bibtex.FieldTitle)),
		Year:      yearFrom(get(bibtex.FieldYear)),
		Volume:    get(bibtex.FieldVolume),
		Issue:     get(bibtex.FieldNumber),
		Pages:     get(bibtex.FieldPages),
		Publisher: stripOuterBraces(get(bibtex.FieldPublisher)),
	}

	rec.Venue = firstNonEmpty(
		stripOuterBraces(get(bibtex.FieldJournal)),
		stripOuterBraces(get(bibtex.FieldBookTitle)),
	)

	rec.Authors = ParseAuthorList(get(bibtex.FieldAuthor))

	if doi := get("doi"); doi != "" {
		rec.DOI = ident.ExtractDOI("doi:" + doi)
	}
	if isbn := get("isbn"); isbn != "" {
		rec.ISBN = ident.ISBNDigits(isbn)
	}
	rec.URL = get("url")
	if eprint := get("eprint"); eprint != "" {
		if a, ok := ident.ExtractArxiv("arXiv:" + eprint); ok {
			rec.Arxiv = a
		}
	}
	if rec.Arxiv.ID == "" && rec.URL != "" {
		if a, ok := ident.ExtractArxiv(rec.URL); ok {
			rec.Arxiv = a
		}
	}

	return rec
}

// normalizeEntryType maps uncommon entry types onto the set the emitter
// renders, preserving the common ones unchanged.
func normalizeEntryType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "article", "book", "booklet", "inbook", "incollection",
		"inproceedings", "manual", "mastersthesis", "misc", "phdthesis",
		"proceedings", "techreport", "unpublished":
		return t
	case "conference":
		return "inproceedings"
	case "online", "electronic", "www":
		return "misc"
	default:
		return "misc"
	}
}

// exprText flattens a BibTeX tag expression to plain text. Concatenation
// is resolved recursively; abbreviation references fall back to the
// abbreviation name.
func exprText(x ast.Expr) string {
	switch v := x.(type) {
	case *ast.UnparsedText:
		return v.Value
	case *ast.ConcatExpr:
		return exprText(v.X) + exprText(v.Y)
	case *ast.Ident:
		return v.Name
	default:
		return ""
	}
}

// stripOuterBraces removes protective brace groups around a whole field
// value, as in {{Craft of Use}}. Inner braces are preserved.
func stripOuterBraces(s string) string {
	for len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' && balancedOuter(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// balancedOuter reports whether the outermost braces of s wrap the whole
// string (so stripping them is safe).
func balancedOuter(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// ParseAuthorList splits a BibTeX author field on " and " separators.
//
// Each part is either "Family, Given", "Given Family", or a brace-wrapped
// corporate name, which is kept whole (never split into family/given).
func ParseAuthorList(field string) []Author {
	if field == "" {
		return nil
	}
	var authors []Author
	for _, part := range splitAnd(field) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			authors = append(authors, Author{
				Family:    stripOuterBraces(part),
				Corporate: true,
			})
			continue
		}
		if family, given, ok := strings.Cut(part, ","); ok {
			authors = append(authors, Author{
				Family: strings.TrimSpace(family),
				Given:  strings.TrimSpace(given),
			})
			continue
		}
		if i := strings.LastIndex(part, " "); i >= 0 {
			authors = append(authors, Author{
				Family: strings.TrimSpace(part[i+1:]),
				Given:  strings.TrimSpace(part[:i]),
			})
			continue
		}
		authors = append(authors, Author{Family: part})
	}
	return authors
}

// splitAnd splits on the BibTeX "and" keyword at brace depth zero.
func splitAnd(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i+5 <= len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		}
		if depth == 0 && s[i] == ' ' && strings.HasPrefix(s[i:], " and ") {
			parts = append(parts, s[last:i])
			last = i + 5
			i += 4
		}
	}
	parts = append(parts, s[last:])
	return parts
}
