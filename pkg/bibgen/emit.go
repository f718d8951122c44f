// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bibgen

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kraklabs/mdtex/pkg/library"
)

// EmittedEntry describes one entry of the emitted bibliography.
type EmittedEntry struct {
	Key      string `json:"key"`
	RecordID string `json:"record_id"`
	Class    int    `json:"-"`
}

// Emitted is the result of rendering the matched records.
type Emitted struct {
	// Text is the full BibTeX file content.
	Text string `json:"-"`

	// Keys maps record ID to the assigned citation key (invariant I2:
	// unique within the file, stable across runs for the same snapshot).
	Keys map[string]string `json:"keys"`

	// Entries lists the emitted entries in file order.
	Entries []EmittedEntry `json:"entries"`
}

// Emit renders every record used by at least one occurrence to BibTeX.
//
// Entries are ordered by identifier class strength (DOI, ISBN, arXiv,
// URL), then lexicographically by key, so two runs over the same snapshot
// produce byte-identical output. Duplicate records (several occurrences
// binding the same record) are emitted once.
func Emit(records []*library.Record, policy Policy) (*Emitted, error) {
	// Dedupe by record identity, preserving first-use order for the
	// deterministic collision suffixes.
	seen := make(map[string]bool, len(records))
	unique := make([]*library.Record, 0, len(records))
	for _, rec := range records {
		if rec == nil || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		unique = append(unique, rec)
	}

	gen := newKeyGen(policy)
	type assigned struct {
		rec   *library.Record
		key   string
		class int
	}
	entries := make([]assigned, 0, len(unique))
	for _, rec := range unique {
		key, class, err := gen.assign(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, assigned{rec: rec, key: key, class: class})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].class != entries[j].class {
			return entries[i].class < entries[j].class
		}
		return entries[i].key < entries[j].key
	})

	out := &Emitted{Keys: make(map[string]string, len(entries))}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		renderEntry(&b, e.rec, e.key)
		out.Keys[e.rec.ID] = e.key
		out.Entries = append(out.Entries, EmittedEntry{Key: e.key, RecordID: e.rec.ID, Class: e.class})
	}
	out.Text = b.String()

	slog.Info("emit.done", "entries", len(out.Entries))
	return out, nil
}

// renderEntry writes one BibTeX entry.
func renderEntry(b *strings.Builder, rec *library.Record, key string) {
	fmt.Fprintf(b, "@%s{%s,\n", rec.Type, key)

	writeField(b, "title", escapeLaTeX(rec.Title))
	if author := formatAuthors(rec.Authors); author != "" {
		writeField(b, "author", author)
	}
	writeField(b, "year", rec.Year)

	switch rec.Type {
	case "article":
		writeField(b, "journal", escapeLaTeX(rec.Venue))
	case "inproceedings", "incollection":
		writeField(b, "booktitle", escapeLaTeX(rec.Venue))
	default:
		if rec.Venue != "" {
			writeField(b, "howpublished", escapeLaTeX(rec.Venue))
		}
	}

	writeField(b, "volume", rec.Volume)
	writeField(b, "number", rec.Issue)
	writeField(b, "pages", rec.Pages)
	writeField(b, "publisher", escapeLaTeX(rec.Publisher))
	writeField(b, "isbn", rec.ISBN)
	writeField(b, "doi", rec.DOI)

	// arXiv entries carry both the eprint (canonical id, version kept as
	// extracted at match time) and the URL.
	if rec.Arxiv.ID != "" {
		writeField(b, "eprint", rec.Arxiv.String())
		writeField(b, "archiveprefix", "arXiv")
	}
	writeField(b, "url", rec.URL)

	b.WriteString("}\n")
}

func writeField(b *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s = {%s},\n", name, value)
}

// formatAuthors renders the author list for BibTeX. Corporate authors are
// double-braced inside the field value, which together with the field
// delimiters yields the triple-braced form ({{{European Commission}}})
// that stops BibTeX from splitting the name into "Commission, E".
func formatAuthors(authors []library.Author) string {
	if len(authors) == 0 {
		return ""
	}
	parts := make([]string, 0, len(authors))
	for _, a := range authors {
		switch {
		case a.Corporate:
			parts = append(parts, "{{"+escapeLaTeX(a.Family)+"}}")
		case a.Given != "":
			parts = append(parts, escapeLaTeX(a.Family)+", "+escapeLaTeX(a.Given))
		default:
			parts = append(parts, escapeLaTeX(a.Family))
		}
	}
	return strings.Join(parts, " and ")
}

// escapeLaTeX escapes the LaTeX special characters that appear in
// bibliographic text. Identifier fields (doi, url, eprint, isbn) are
// written verbatim; BibTeX styles handle them through \url.
func escapeLaTeX(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\textbackslash{}`)
		case '&', '%', '$', '#', '_':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '~':
			b.WriteString(`\textasciitilde{}`)
		case '^':
			b.WriteString(`\textasciicircum{}`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
