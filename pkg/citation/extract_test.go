// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_BasicCitation(t *testing.T) {
	src := []byte(`Fashion outlives its use value [Fletcher (2016)](https://www.amazon.de/dp/1138021016) in most wardrobes.`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	occ := occs[0]
	assert.Equal(t, "Fletcher (2016)", occ.Text)
	assert.Equal(t, "https://www.amazon.de/dp/1138021016", occ.RawURL)
	assert.NotEmpty(t, occ.CanonicalURL)
	assert.Equal(t, "[Fletcher (2016)](https://www.amazon.de/dp/1138021016)", string(src[occ.Start:occ.End]))
}

func TestExtract_NonAcademicLinksIgnored(t *testing.T) {
	src := []byte(`See [here](https://example.com/about) and the [project page](https://example.com).`)

	occs, err := Extract(src)
	require.NoError(t, err)
	assert.Empty(t, occs)
}

func TestExtract_YearWithoutAuthorNeedsAcademicURL(t *testing.T) {
	// "the 2024 report" has a year but no author token and no academic
	// identifier in the URL: not a citation.
	src := []byte(`As shown in [the 2024 report](https://example.com/report).`)
	occs, err := Extract(src)
	require.NoError(t, err)
	assert.Empty(t, occs)

	// The same shape with a DOI URL is a citation.
	src = []byte(`As shown in [the 2024 report](https://doi.org/10.1145/3618394).`)
	occs, err = Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 1)
}

func TestExtract_EtAlAndSuffixYears(t *testing.T) {
	src := []byte(`Prior work [Smith et al. (2024a)](https://arxiv.org/abs/2401.12345) and [Jones (2023b)](https://doi.org/10.1/x).`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, "Smith et al. (2024a)", occs[0].Text)
	assert.Equal(t, "Jones (2023b)", occs[1].Text)
}

func TestExtract_SourceOrder(t *testing.T) {
	src := []byte(strings.Join([]string{
		"[Alpha (2020)](https://doi.org/10.1/a) text",
		"middle [Beta (2021)](https://doi.org/10.1/b) more",
		"end [Gamma (2022)](https://doi.org/10.1/c).",
	}, "\n"))

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 3)
	assert.True(t, occs[0].Start < occs[1].Start && occs[1].Start < occs[2].Start)
	assert.Equal(t, "Alpha (2020)", occs[0].Text)
	assert.Equal(t, "Gamma (2022)", occs[2].Text)
}

func TestExtract_ReferenceStyleLink(t *testing.T) {
	src := []byte("Cited as [Fletcher (2016)][fletcher].\n\n[fletcher]: https://www.amazon.de/dp/1138021016\n")

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	occ := occs[0]
	assert.Equal(t, "Fletcher (2016)", occ.Text)
	assert.Equal(t, "https://www.amazon.de/dp/1138021016", occ.RawURL)
	assert.Equal(t, "[Fletcher (2016)][fletcher]", string(src[occ.Start:occ.End]))
}

func TestExtract_UncanonicalizableURLStillReturned(t *testing.T) {
	src := []byte(`[Obscure (2023)](ftp://)`)

	occs, err := Extract(src)
	require.NoError(t, err)
	// The URL has no host so it cannot be canonicalized, but the
	// occurrence is still returned for the matcher to diagnose.
	require.Len(t, occs, 1)
	assert.Empty(t, occs[0].CanonicalURL)
}

func TestExtract_EmphasisInsideLinkText(t *testing.T) {
	src := []byte(`[*Fletcher* (2016)](https://doi.org/10.1145/3618394)`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "Fletcher (2016)", occs[0].Text)
	assert.Equal(t, 0, occs[0].Start)
	assert.Equal(t, len(src), occs[0].End)
}

func TestExtract_MultipleOccurrencesSameTarget(t *testing.T) {
	src := []byte(`[A (2020)](https://doi.org/10.1/same) then again [A (2020)](https://doi.org/10.1/same)`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 2)
	assert.Equal(t, occs[0].CanonicalURL, occs[1].CanonicalURL)
	assert.NotEqual(t, occs[0].Start, occs[1].Start)
}

func TestIsAcademicCitation(t *testing.T) {
	tests := []struct {
		name    string
		display string
		url     string
		want    bool
	}{
		{"author year", "Fletcher (2016)", "https://example.com/x", true},
		{"et al", "smith et al. (2024)", "https://example.com/x", true},
		{"no year", "Fletcher", "https://doi.org/10.1/x", false},
		{"year only with doi", "2024", "https://doi.org/10.1/x", true},
		{"year only plain url", "2024", "https://example.com/x", false},
		{"year suffix", "Jones (2023a)", "https://example.com/x", true},
		{"lowercase no identifier", "the report (2024)", "https://example.com/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAcademicCitation(tt.display, tt.url))
		})
	}
}
