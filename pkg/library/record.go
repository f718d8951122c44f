// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package library loads the user's reference library into an immutable
// in-memory snapshot with per-identifier indices.
//
// Two source formats are supported: Zotero-style RDF/XML (preferred, since
// it preserves URL and ISBN fields) and BibTeX (tolerated, known lossy).
// Both loaders produce the same Record shape, so the rest of the pipeline
// never knows which format the user exported.
package library

import (
	"strings"

	"github.com/kraklabs/mdtex/pkg/ident"
)

// Author is one author of a reference record.
//
// Corporate authors (organizations) carry the whole name in Family with
// Corporate set; they are never split into family/given parts.
type Author struct {
	Family    string `json:"family"`
	Given     string `json:"given,omitempty"`
	Corporate bool   `json:"corporate,omitempty"`
}

// DisplayName returns the author formatted for diagnostics.
func (a Author) DisplayName() string {
	if a.Corporate || a.Given == "" {
		return a.Family
	}
	return a.Family + ", " + a.Given
}

// Record is one bibliographic item from the user's library.
//
// Records are immutable within a pipeline run. The identifier fields hold
// canonical forms (via pkg/ident) except ISBN, which keeps the digits as
// present in the source so emitted citation keys match the user's library;
// the canonical ISBN-13 used for index lookups is derived on demand.
type Record struct {
	// ID is the stable local identifier, generated from the strongest
	// available external identifier when the snapshot is built.
	ID string `json:"id"`

	// Type is the BibTeX-style entry type: article, book, inproceedings,
	// phdthesis, techreport, misc.
	Type string `json:"type"`

	Title     string   `json:"title"`
	Authors   []Author `json:"authors,omitempty"`
	Year      string   `json:"year,omitempty"`
	Venue     string   `json:"venue,omitempty"`
	Volume    string   `json:"volume,omitempty"`
	Issue     string   `json:"issue,omitempty"`
	Pages     string   `json:"pages,omitempty"`
	Publisher string   `json:"publisher,omitempty"`

	// External identifiers as carried by the source.
	DOI   string        `json:"doi,omitempty"`   // canonical (lowercase, bare)
	Arxiv ident.ArxivID `json:"arxiv,omitempty"` // canonical, version split
	ISBN  string        `json:"isbn,omitempty"`  // digits as in source
	URL   string        `json:"url,omitempty"`   // as in source
}

// CanonicalISBN returns the ISBN-13 index form of the record's ISBN, or ""
// when the record carries none or the checksum is invalid.
func (r *Record) CanonicalISBN() string {
	if r.ISBN == "" {
		return ""
	}
	return ident.CanonicalISBN(r.ISBN)
}

// CanonicalURL returns the normalized lookup form of the record's URL.
func (r *Record) CanonicalURL() string {
	if r.URL == "" {
		return ""
	}
	return ident.NormalizeURL(r.URL)
}

// HasCorporateAuthor reports whether any author is an organization.
func (r *Record) HasCorporateAuthor() bool {
	for _, a := range r.Authors {
		if a.Corporate {
			return true
		}
	}
	return false
}

// FirstAuthorFamily returns the family name of the first author, or "".
func (r *Record) FirstAuthorFamily() string {
	if len(r.Authors) == 0 {
		return ""
	}
	return r.Authors[0].Family
}

// yearFrom extracts the first four-digit year from a date string, which in
// RDF exports ranges from "2016" to "March 14, 2016" to "2016-03-14".
func yearFrom(date string) string {
	for i := 0; i+4 <= len(date); i++ {
		if isYear(date[i : i+4]) {
			// Reject longer digit runs (e.g. timestamps).
			if i+4 < len(date) && date[i+4] >= '0' && date[i+4] <= '9' {
				continue
			}
			if i > 0 && date[i-1] >= '0' && date[i-1] <= '9' {
				continue
			}
			return date[i : i+4]
		}
	}
	return ""
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return strings.HasPrefix(s, "1") || strings.HasPrefix(s, "2")
}
