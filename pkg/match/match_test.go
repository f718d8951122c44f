// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

func testSnapshot() *library.Snapshot {
	return library.NewSnapshot([]*library.Record{
		{
			Type:  "article",
			Title: "Designing for Longevity",
			DOI:   "10.1145/3618394",
			Year:  "2024",
		},
		{
			Type:  "book",
			Title: "Craft of Use: Post-Growth Fashion",
			ISBN:  "1138021016",
			URL:   "https://www.amazon.de/-/en/Craft-Use-Post-Growth-Kate-Fletcher/dp/1138021016",
			Year:  "2016",
		},
		{
			Type:  "misc",
			Title: "Attention Is Not Enough",
			Arxiv: ident.ArxivID{ID: "2401.12345", Version: "v2"},
			URL:   "https://arxiv.org/abs/2401.12345v2",
			Year:  "2024",
		},
		{
			Type:  "misc",
			Title: "Ecodesign Regulations",
			URL:   "https://commission.europa.eu/energy/ecodesign_en",
			Year:  "2024",
		},
	})
}

func occ(text, url string) citation.Occurrence {
	return citation.Occurrence{
		Text:         text,
		RawURL:       url,
		CanonicalURL: ident.NormalizeURL(url),
	}
}

func TestMatch_DOIStrategy(t *testing.T) {
	m := New(testSnapshot())

	res := m.Match(occ("Smith (2024)", "https://doi.org/10.1145/3618394"))
	require.True(t, res.Matched())
	assert.Equal(t, StrategyDOI, res.Strategy)
	assert.Equal(t, "Designing for Longevity", res.Record.Title)
}

func TestMatch_DOIVariantsBindSameRecord(t *testing.T) {
	m := New(testSnapshot())

	a := m.Match(occ("Smith (2024)", "https://doi.org/10.1145/3618394"))
	b := m.Match(occ("Smith (2024)", "http://dx.doi.org/10.1145/3618394/"))

	require.True(t, a.Matched())
	require.True(t, b.Matched())
	assert.Same(t, a.Record, b.Record)
}

func TestMatch_ISBNStrategyOnAmazonURL(t *testing.T) {
	m := New(testSnapshot())

	res := m.Match(occ("Fletcher (2016)", "https://www.amazon.de/-/en/Craft-Use-Post-Growth-Kate-Fletcher/dp/1138021016"))
	require.True(t, res.Matched())
	assert.Equal(t, StrategyISBN, res.Strategy)
	assert.Equal(t, "Craft of Use: Post-Growth Fashion", res.Record.Title)
}

func TestMatch_ArxivVersionInsensitive(t *testing.T) {
	m := New(testSnapshot())

	// The document cites v1 while the library stores v2.
	res := m.Match(occ("Smith (2024)", "https://arxiv.org/abs/2401.12345v1"))
	require.True(t, res.Matched())
	assert.Equal(t, StrategyArxiv, res.Strategy)
	assert.Equal(t, "Attention Is Not Enough", res.Record.Title)
}

func TestMatch_URLFallback(t *testing.T) {
	m := New(testSnapshot())

	res := m.Match(occ("European Commission (2024)", "https://commission.europa.eu/energy/ecodesign_en?utm_source=newsletter"))
	require.True(t, res.Matched())
	assert.Equal(t, StrategyURL, res.Strategy)
	assert.Equal(t, "Ecodesign Regulations", res.Record.Title)
}

func TestMatch_MissCarriesAttemptTrail(t *testing.T) {
	m := New(testSnapshot())

	res := m.Match(occ("Obscure (2023)", "https://example.invalid/paper"))
	require.False(t, res.Matched())
	require.Len(t, res.Attempts, 4)

	assert.Equal(t, StrategyDOI, res.Attempts[0].Strategy)
	assert.Equal(t, "no DOI in URL", res.Attempts[0].Reason)
	assert.Equal(t, StrategyURL, res.Attempts[3].Strategy)
	assert.Equal(t, "URL not in library", res.Attempts[3].Reason)
	assert.NotEmpty(t, res.MissReason())
}

func TestMatch_Deterministic(t *testing.T) {
	o := occ("Smith (2024)", "https://doi.org/10.1145/3618394")

	first := New(testSnapshot()).Match(o)
	second := New(testSnapshot()).Match(o)

	assert.Equal(t, first.Strategy, second.Strategy)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.Equal(t, first.Attempts, second.Attempts)
}

func TestMatch_CascadeOrderDOIBeforeURL(t *testing.T) {
	// A record whose URL is a DOI resolver link: the DOI strategy must
	// win before the URL fallback is ever consulted.
	snap := library.NewSnapshot([]*library.Record{
		{Type: "article", Title: "By DOI", DOI: "10.1/x", URL: "https://doi.org/10.1/x"},
	})
	m := New(snap)

	res := m.Match(occ("A (2020)", "https://doi.org/10.1/x"))
	require.True(t, res.Matched())
	assert.Equal(t, StrategyDOI, res.Strategy)
	assert.Len(t, res.Attempts, 1)
}

func TestStats(t *testing.T) {
	m := New(testSnapshot())

	m.Match(occ("Smith (2024)", "https://doi.org/10.1145/3618394"))
	m.Match(occ("Fletcher (2016)", "https://www.amazon.de/dp/1138021016"))
	m.Match(occ("Obscure (2023)", "https://example.invalid/paper"))

	s := m.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Hits[StrategyDOI])
	assert.Equal(t, 1, s.Hits[StrategyISBN])
	assert.Equal(t, 1, s.Misses)
	assert.Equal(t, 4, s.Index.Records)
	assert.Equal(t, 1, s.Index.DOIs)
}

func TestWarnings_EmptyIndices(t *testing.T) {
	snap := library.NewSnapshot([]*library.Record{
		{Type: "misc", Title: "no identifiers at all"},
	})
	m := New(snap)

	warnings := m.Warnings()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "identifier index is empty")
}

func TestWarnings_MissThreshold(t *testing.T) {
	m := New(testSnapshot(), WithMissThreshold(2))

	m.Match(occ("A (2020)", "https://nowhere.invalid/1"))
	m.Match(occ("B (2021)", "https://nowhere.invalid/2"))

	warnings := m.Warnings()
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[len(warnings)-1], "2 occurrences missed")
}

func TestWarnings_HealthyRun(t *testing.T) {
	m := New(testSnapshot())
	m.Match(occ("Smith (2024)", "https://doi.org/10.1145/3618394"))
	assert.Empty(t, m.Warnings())
}
