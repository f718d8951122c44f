// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package library

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    Format
	}{
		{"rdf extension", "library.rdf", "", FormatRDF},
		{"xml extension", "library.xml", "", FormatRDF},
		{"bib extension", "library.bib", "", FormatBibTeX},
		{"bibtex extension", "library.bibtex", "", FormatBibTeX},
		{"xml sniff", "export.dat", "<?xml version=\"1.0\"?><rdf:RDF/>", FormatRDF},
		{"at sniff", "export.dat", "@article{x, title={T}}", FormatBibTeX},
		{"comment sniff", "export.dat", "% comment\n@book{y}", FormatBibTeX},
		{"unknown", "export.dat", "random bytes", FormatAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.path, []byte(tt.content)))
		})
	}
}

func TestLoad_RDF(t *testing.T) {
	path := writeTemp(t, "library.rdf", sampleRDF)

	snap, err := Load(path, FormatAuto, true)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())

	_, ok := snap.LookupDOI("10.1145/3618394")
	assert.True(t, ok)
}

func TestLoad_BibTeX(t *testing.T) {
	path := writeTemp(t, "library.bib", sampleBib)

	snap, err := Load(path, FormatAuto, true)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.rdf"), FormatAuto, true)
	assert.Error(t, err)
}

func TestLoad_EmptyStrict(t *testing.T) {
	empty := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:z="http://www.zotero.org/namespaces/export#">
  <z:Attachment rdf:about="#a1"/>
</rdf:RDF>`
	path := writeTemp(t, "library.rdf", empty)

	_, err := Load(path, FormatAuto, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyLibrary), "want ErrEmptyLibrary, got %v", err)

	// Relaxed mode proceeds with an empty snapshot.
	snap, err := Load(path, FormatAuto, false)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Len())
}

func TestLoad_ExplicitHintOverridesExtension(t *testing.T) {
	// BibTeX content behind a misleading extension.
	path := writeTemp(t, "library.rdf", sampleBib)

	snap, err := Load(path, FormatBibTeX, true)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.Len())
}

func TestLoad_Malformed(t *testing.T) {
	path := writeTemp(t, "library.rdf", "<?xml version=\"1.0\"?><rdf:RDF xmlns:rdf=\"http://www.w3.org/1999/02/22-rdf-syntax-ns#\"><broken")
	_, err := Load(path, FormatAuto, true)
	assert.Error(t, err)
}
