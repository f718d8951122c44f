// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package library

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies a reference library file format.
type Format int

const (
	// FormatAuto detects the format from extension and content sniffing.
	FormatAuto Format = iota
	// FormatRDF is Zotero-style RDF/XML.
	FormatRDF
	// FormatBibTeX is a BibTeX export (lossy: URL and ISBN often absent).
	FormatBibTeX
)

func (f Format) String() string {
	switch f {
	case FormatRDF:
		return "rdf"
	case FormatBibTeX:
		return "bibtex"
	default:
		return "auto"
	}
}

// ErrEmptyLibrary is returned (wrapped) when the library file parses but
// yields zero bibliographic items. Strict mode treats this as fatal:
// library-less execution is never a silent fallback.
var ErrEmptyLibrary = errors.New("library contains zero bibliographic items")

// Load reads the library at path into a Snapshot.
//
// The format is detected from the file extension and content unless hint
// names one explicitly. A missing, unreadable, or unparseable file is an
// error in every mode. A library with zero items is an error in strict
// mode; otherwise an empty snapshot is returned with a warning so relaxed
// runs can proceed.
func Load(path string, hint Format, strict bool) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read library %s: %w", path, err)
	}

	format := hint
	if format == FormatAuto {
		format = DetectFormat(path, raw)
	}

	var records []*Record
	switch format {
	case FormatRDF:
		records, err = parseRDF(raw)
	case FormatBibTeX:
		records, err = parseBibTeX(raw)
	default:
		return nil, fmt.Errorf("library %s: cannot detect format (expected RDF/XML or BibTeX)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse library %s as %s: %w", path, format, err)
	}

	if len(records) == 0 {
		if strict {
			return nil, fmt.Errorf("library %s: %w", path, ErrEmptyLibrary)
		}
		slog.Warn("library.empty", "path", path, "format", format.String())
	}

	snap := NewSnapshot(records)
	stats := snap.Stats()
	slog.Info("library.loaded",
		"path", path,
		"format", format.String(),
		"records", stats.Records,
		"dois", stats.DOIs,
		"arxiv", stats.ArxivIDs,
		"isbns", stats.ISBNs,
		"urls", stats.URLs,
		"duplicates", len(snap.Duplicates))
	return snap, nil
}

// DetectFormat infers the library format from path extension, falling back
// to content sniffing for ambiguous extensions.
func DetectFormat(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rdf", ".xml":
		return FormatRDF
	case ".bib", ".bibtex":
		return FormatBibTeX
	}

	head := bytes.TrimLeft(content, " \t\r\n\uFEFF")
	switch {
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.HasPrefix(head, []byte("<rdf:RDF")):
		return FormatRDF
	case bytes.HasPrefix(head, []byte("@")), bytes.HasPrefix(head, []byte("%")):
		return FormatBibTeX
	default:
		return FormatAuto
	}
}
