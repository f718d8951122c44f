// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package match resolves citation occurrences against the library snapshot
// through an ordered strategy cascade: DOI, then ISBN, then arXiv, then
// normalized URL. The first hit wins.
//
// The cascade is deterministic and total: identical inputs always produce
// identical results. Fuzzy matching on titles, authors, or years is
// deliberately absent; it introduces non-determinism and false positives
// that pollute bibliographies. A missed match stays a miss and carries a
// full attempt trail for diagnosis.
package match

import (
	"fmt"
	"log/slog"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

// Strategy names one step of the match cascade.
type Strategy string

const (
	StrategyDOI   Strategy = "doi"
	StrategyISBN  Strategy = "isbn"
	StrategyArxiv Strategy = "arxiv"
	StrategyURL   Strategy = "url"
)

// strategies is the cascade in evaluation order.
var strategies = []Strategy{StrategyDOI, StrategyISBN, StrategyArxiv, StrategyURL}

// Attempt records one strategy evaluation for an occurrence: which
// identifier was derived from the URL (if any) and why the attempt did
// not produce a record. Matcher failures without this trail are defects.
type Attempt struct {
	Strategy   Strategy `json:"strategy"`
	Identifier string   `json:"identifier,omitempty"`
	Reason     string   `json:"reason"`
}

// Result is the outcome of matching one occurrence: either a record plus
// the strategy that found it, or a miss with the attempt trail.
type Result struct {
	Occurrence citation.Occurrence `json:"occurrence"`
	Record     *library.Record     `json:"-"`
	RecordID   string              `json:"record_id,omitempty"`
	Strategy   Strategy            `json:"strategy,omitempty"`
	Attempts   []Attempt           `json:"attempts"`
}

// Matched reports whether the occurrence resolved to a record.
func (r Result) Matched() bool {
	return r.Record != nil
}

// MissReason summarizes why the occurrence missed, for reports.
func (r Result) MissReason() string {
	if r.Matched() {
		return ""
	}
	return fmt.Sprintf("no strategy matched (%d attempted)", len(r.Attempts))
}

// Stats accumulates cascade counters across a run. A healthy library for a
// citation-dense paper produces hundreds of DOI index entries; zero-size
// indices over a non-empty library indicate an export problem rather than
// missing data.
type Stats struct {
	Index  library.IndexStats `json:"index"`
	Hits   map[Strategy]int   `json:"hits"`
	Misses int                `json:"misses"`
	Total  int                `json:"total"`
}

// Matcher matches occurrences against one library snapshot.
type Matcher struct {
	snap  *library.Snapshot
	stats Stats

	// missThreshold is the count of misses at or above which Warnings flags a
	// likely matching bug instead of merely missing data. Policy, not
	// contract; configurable via the policy file.
	missThreshold int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMissThreshold overrides the matcher-health miss threshold.
func WithMissThreshold(n int) Option {
	return func(m *Matcher) { m.missThreshold = n }
}

// DefaultMissThreshold is the default count of misses that triggers a
// matcher-health warning.
const DefaultMissThreshold = 5

// New creates a Matcher over the snapshot.
func New(snap *library.Snapshot, opts ...Option) *Matcher {
	m := &Matcher{
		snap:          snap,
		missThreshold: DefaultMissThreshold,
		stats: Stats{
			Index: snap.Stats(),
			Hits:  make(map[Strategy]int),
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match resolves one occurrence through the cascade and updates the run
// counters. Every attempt is logged with the derived identifier and the
// failure reason.
func (m *Matcher) Match(occ citation.Occurrence) Result {
	res := Result{Occurrence: occ}
	m.stats.Total++

	for _, strat := range strategies {
		attempt, rec := m.try(strat, occ)
		if rec != nil {
			res.Record = rec
			res.RecordID = rec.ID
			res.Strategy = strat
			res.Attempts = append(res.Attempts, Attempt{
				Strategy:   strat,
				Identifier: attempt.Identifier,
				Reason:     "hit",
			})
			m.stats.Hits[strat]++
			recordMatchHit(string(strat))
			slog.Debug("match.hit", "text", occ.Text, "strategy", strat,
				"identifier", attempt.Identifier, "record", rec.ID)
			return res
		}
		res.Attempts = append(res.Attempts, attempt)
		slog.Debug("match.attempt", "text", occ.Text, "strategy", strat,
			"identifier", attempt.Identifier, "reason", attempt.Reason)
	}

	m.stats.Misses++
	recordMatchMiss()
	slog.Info("match.miss", "text", occ.Text, "url", occ.RawURL,
		"canonical_url", occ.CanonicalURL, "attempts", len(res.Attempts))
	return res
}

// try evaluates one strategy for the occurrence.
func (m *Matcher) try(strat Strategy, occ citation.Occurrence) (Attempt, *library.Record) {
	a := Attempt{Strategy: strat}
	switch strat {
	case StrategyDOI:
		doi := ident.ExtractDOI(occ.RawURL)
		if doi == "" {
			a.Reason = "no DOI in URL"
			return a, nil
		}
		a.Identifier = doi
		if rec, ok := m.snap.LookupDOI(doi); ok {
			return a, rec
		}
		a.Reason = "DOI not in library"
		return a, nil

	case StrategyISBN:
		isbn := ident.ExtractISBN(occ.RawURL)
		if isbn == "" {
			a.Reason = "no ISBN in URL"
			return a, nil
		}
		a.Identifier = isbn
		if rec, ok := m.snap.LookupISBN(isbn); ok {
			return a, rec
		}
		a.Reason = "ISBN not in library"
		return a, nil

	case StrategyArxiv:
		arxiv, ok := ident.ExtractArxiv(occ.RawURL)
		if !ok {
			a.Reason = "no arXiv id in URL"
			return a, nil
		}
		a.Identifier = arxiv.String()
		if rec, found := m.snap.LookupArxiv(arxiv.ID); found {
			return a, rec
		}
		a.Reason = "arXiv id not in library"
		return a, nil

	case StrategyURL:
		if occ.CanonicalURL == "" {
			a.Reason = "URL cannot be canonicalized"
			return a, nil
		}
		a.Identifier = occ.CanonicalURL
		if rec, ok := m.snap.LookupURL(occ.CanonicalURL); ok {
			return a, rec
		}
		a.Reason = "URL not in library"
		return a, nil
	}
	a.Reason = "unknown strategy"
	return a, nil
}

// Stats returns the accumulated counters.
func (m *Matcher) Stats() Stats {
	return m.stats
}

// Warnings returns matcher-health findings for the run report: empty
// indices over a non-empty library and miss counts at or above the threshold.
func (m *Matcher) Warnings() []string {
	var warnings []string
	idx := m.stats.Index
	if idx.Records > 0 {
		if idx.DOIs == 0 && idx.ISBNs == 0 && idx.ArxivIDs == 0 && idx.URLs == 0 {
			warnings = append(warnings,
				fmt.Sprintf("library has %d records but every identifier index is empty; the export likely lost identifier fields", idx.Records))
		} else if idx.URLs == 0 && idx.URLBearing > 0 {
			warnings = append(warnings,
				fmt.Sprintf("%d records carry URLs but the URL index is empty", idx.URLBearing))
		}
	}
	if m.stats.Misses >= m.missThreshold {
		warnings = append(warnings,
			fmt.Sprintf("%d occurrences missed (threshold %d); this smells like a matching bug or a stale library export rather than genuinely missing references",
				m.stats.Misses, m.missThreshold))
	}
	return warnings
}

// LogSummary emits the bulk diagnostics required at run completion.
func (m *Matcher) LogSummary() {
	s := m.stats
	slog.Info("match.summary",
		"total", s.Total,
		"hits_doi", s.Hits[StrategyDOI],
		"hits_isbn", s.Hits[StrategyISBN],
		"hits_arxiv", s.Hits[StrategyArxiv],
		"hits_url", s.Hits[StrategyURL],
		"misses", s.Misses,
		"index_dois", s.Index.DOIs,
		"index_arxiv", s.Index.ArxivIDs,
		"index_isbns", s.Index.ISBNs,
		"index_urls", s.Index.URLs,
		"url_bearing_records", s.Index.URLBearing)
}
