// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplace_BindsResolvedOccurrences(t *testing.T) {
	src := []byte(`Intro [Fletcher (2016)](https://www.amazon.de/dp/1138021016) and [Smith (2024)](https://arxiv.org/abs/2401.12345) end.`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 2)

	out, n, err := Replace(src, occs, map[int]string{
		0: "isbn_1138021016",
		1: "arxiv_2401_12345",
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, `Intro \citep{isbn_1138021016} and \citep{arxiv_2401_12345} end.`, string(out))
}

func TestReplace_UnresolvedLeftIntact(t *testing.T) {
	src := []byte(`[Known (2020)](https://doi.org/10.1/a) but [Obscure (2023)](https://example.invalid/paper)`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 2)

	out, n, err := Replace(src, occs, map[int]string{0: "doi_10_1_a"}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, string(out), `\citep{doi_10_1_a}`)
	// The unresolved occurrence survives verbatim.
	assert.Contains(t, string(out), "[Obscure (2023)](https://example.invalid/paper)")
}

func TestReplace_CustomSurface(t *testing.T) {
	src := []byte(`[Fletcher (2016)](https://doi.org/10.1145/3618394)`)

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	out, _, err := Replace(src, occs, map[int]string{0: "doi_10_1145_3618394"}, `\citet`)
	require.NoError(t, err)
	assert.Equal(t, `\citet{doi_10_1145_3618394}`, string(out))
}

func TestReplace_PreservesDocumentOrder(t *testing.T) {
	src := []byte("[A (2020)](https://doi.org/10.1/a) mid [B (2021)](https://doi.org/10.1/b) tail [C (2022)](https://doi.org/10.1/c)")

	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 3)

	out, n, err := Replace(src, occs, map[int]string{0: "k_a", 1: "k_b", 2: "k_c"}, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, `\citep{k_a} mid \citep{k_b} tail \citep{k_c}`, string(out))
}

func TestReplace_BadBindingIndex(t *testing.T) {
	src := []byte(`[A (2020)](https://doi.org/10.1/a)`)
	occs, err := Extract(src)
	require.NoError(t, err)

	_, _, err = Replace(src, occs, map[int]string{7: "key"}, "")
	assert.Error(t, err)
}

func TestReplace_StaleSpanDetected(t *testing.T) {
	src := []byte(`[A (2020)](https://doi.org/10.1/a)`)
	occs, err := Extract(src)
	require.NoError(t, err)
	require.Len(t, occs, 1)

	// Simulate a source that changed after extraction.
	mutated := []byte(`X` + string(src[1:]))
	_, _, err = Replace(mutated, occs, map[int]string{0: "key"}, "")
	assert.Error(t, err)
}

func TestReplace_NoBindings(t *testing.T) {
	src := []byte(`plain text, no citations`)
	out, n, err := Replace(src, nil, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, string(src), string(out))
}
