// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package library

import (
	"fmt"
	"log/slog"
)

// Duplicate records a library-side identifier collision: two records claim
// the same canonical identifier. Duplicates never abort loading; they are
// surfaced in the run report, and index lookups deterministically resolve
// to the first record in document order.
type Duplicate struct {
	Kind     string `json:"kind"` // doi, arxiv, isbn, url
	Key      string `json:"key"`
	FirstID  string `json:"first_id"`
	SecondID string `json:"second_id"`
}

func (d Duplicate) String() string {
	return fmt.Sprintf("duplicate %s %q claimed by %s and %s", d.Kind, d.Key, d.FirstID, d.SecondID)
}

// IndexStats summarizes the snapshot's index sizes for matcher health
// diagnostics. An index size of zero on a non-empty library is a defect
// signal the matcher reports.
type IndexStats struct {
	Records    int `json:"records"`
	DOIs       int `json:"dois"`
	ArxivIDs   int `json:"arxiv_ids"`
	ISBNs      int `json:"isbns"`
	URLs       int `json:"urls"`
	URLBearing int `json:"url_bearing_records"`
}

// Snapshot is the immutable in-memory view of the library for one run:
// the record set plus four indices keyed by canonical DOI, arXiv id
// (version-stripped), ISBN-13, and normalized URL.
type Snapshot struct {
	Records    []*Record
	Duplicates []Duplicate

	byDOI   map[string]*Record
	byArxiv map[string]*Record
	byISBN  map[string]*Record
	byURL   map[string]*Record
}

// NewSnapshot builds the indices over records in document order and assigns
// each record its stable local ID from the strongest available identifier.
//
// When two records claim the same canonical identifier, the first wins the
// index slot and the collision is recorded (invariant I1: reported, never
// silently merged).
func NewSnapshot(records []*Record) *Snapshot {
	s := &Snapshot{
		Records: records,
		byDOI:   make(map[string]*Record),
		byArxiv: make(map[string]*Record),
		byISBN:  make(map[string]*Record),
		byURL:   make(map[string]*Record),
	}

	for i, r := range records {
		r.EnsureID(i)
		if r.DOI != "" {
			s.index("doi", s.byDOI, r.DOI, r)
		}
		if r.Arxiv.ID != "" {
			s.index("arxiv", s.byArxiv, r.Arxiv.ID, r)
		}
		if isbn := r.CanonicalISBN(); isbn != "" {
			s.index("isbn", s.byISBN, isbn, r)
		}
		if u := r.CanonicalURL(); u != "" {
			s.index("url", s.byURL, u, r)
		}
	}
	return s
}

func (s *Snapshot) index(kind string, idx map[string]*Record, key string, r *Record) {
	if prev, ok := idx[key]; ok {
		s.Duplicates = append(s.Duplicates, Duplicate{
			Kind:     kind,
			Key:      key,
			FirstID:  prev.ID,
			SecondID: r.ID,
		})
		slog.Warn("library.duplicate", "kind", kind, "key", key,
			"first", prev.ID, "second", r.ID)
		return
	}
	idx[key] = r
}

// EnsureID assigns the stable local identifier when unset. pos
// disambiguates records that carry no external identifier at all.
func (r *Record) EnsureID(pos int) {
	if r.ID == "" {
		r.ID = localID(r, pos)
	}
}

// localID derives the record's stable identifier from its strongest
// external identifier, falling back to a positional id for records that
// carry none.
func localID(r *Record, pos int) string {
	switch {
	case r.DOI != "":
		return "doi:" + r.DOI
	case r.ISBN != "":
		return "isbn:" + r.ISBN
	case r.Arxiv.ID != "":
		return "arxiv:" + r.Arxiv.ID
	case r.URL != "":
		return "url:" + r.URL
	default:
		return fmt.Sprintf("item:%d", pos)
	}
}

// LookupDOI returns the record claiming the canonical DOI, if any.
func (s *Snapshot) LookupDOI(doi string) (*Record, bool) {
	r, ok := s.byDOI[doi]
	return r, ok
}

// LookupArxiv returns the record claiming the version-stripped arXiv id.
func (s *Snapshot) LookupArxiv(id string) (*Record, bool) {
	r, ok := s.byArxiv[id]
	return r, ok
}

// LookupISBN returns the record claiming the canonical ISBN-13.
func (s *Snapshot) LookupISBN(isbn string) (*Record, bool) {
	r, ok := s.byISBN[isbn]
	return r, ok
}

// LookupURL returns the record claiming the normalized URL.
func (s *Snapshot) LookupURL(u string) (*Record, bool) {
	r, ok := s.byURL[u]
	return r, ok
}

// Len returns the number of bibliographic records in the snapshot.
// Attachments, notes, and other non-bibliographic items were already
// excluded at load time.
func (s *Snapshot) Len() int {
	return len(s.Records)
}

// Stats returns the index sizes for diagnostics.
func (s *Snapshot) Stats() IndexStats {
	urlBearing := 0
	for _, r := range s.Records {
		if r.URL != "" {
			urlBearing++
		}
	}
	return IndexStats{
		Records:    len(s.Records),
		DOIs:       len(s.byDOI),
		ArxivIDs:   len(s.byArxiv),
		ISBNs:      len(s.byISBN),
		URLs:       len(s.byURL),
		URLBearing: urlBearing,
	}
}
