// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

func occFor(url string) citation.Occurrence {
	return citation.Occurrence{
		Text:         "Someone (2024)",
		RawURL:       url,
		CanonicalURL: ident.NormalizeURL(url),
	}
}

func TestCrossRefResolver_MapsResponse(t *testing.T) {
	payload := `{"message": {
		"type": "journal-article",
		"DOI": "10.1145/3618394",
		"URL": "https://doi.org/10.1145/3618394",
		"title": ["Designing for Longevity"],
		"container-title": ["Journal of Sustainable Design"],
		"volume": "12",
		"issue": "3",
		"page": "101-119",
		"publisher": "ACM",
		"author": [
			{"family": "Smith", "given": "Ada"},
			{"name": "European Commission"}
		],
		"issued": {"date-parts": [[2024, 3]]}
	}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	// rewriteHost points the fetch at the test server while keeping the
	// real CrossRef path and query.
	r := NewCrossRefResolver(rewriteHost(srv), 2)

	rec, err := r.Resolve(context.Background(), occFor("https://doi.org/10.1145/3618394"))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "article", rec.Type)
	assert.Equal(t, "10.1145/3618394", rec.DOI)
	assert.Equal(t, "Designing for Longevity", rec.Title)
	assert.Equal(t, "Journal of Sustainable Design", rec.Venue)
	assert.Equal(t, "2024", rec.Year)
	require.Len(t, rec.Authors, 2)
	assert.Equal(t, "Smith", rec.Authors[0].Family)
	assert.True(t, rec.Authors[1].Corporate)
	assert.Equal(t, "European Commission", rec.Authors[1].Family)
}

func TestArxivResolver_MapsFeed(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.12345v2</id>
    <title>Attention Is
      Not Enough</title>
    <published>2024-01-20T18:00:00Z</published>
    <author><name>Ada Smith</name></author>
    <author><name>Ben Jones</name></author>
  </entry>
</feed>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.RawQuery, "id_list=2401.12345")
		w.Write([]byte(feed))
	}))
	defer srv.Close()

	r := NewArxivResolver(rewriteHost(srv), 2)
	rec, err := r.Resolve(context.Background(), occFor("https://arxiv.org/abs/2401.12345"))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "Attention Is Not Enough", rec.Title)
	assert.Equal(t, "2401.12345", rec.Arxiv.ID)
	assert.Equal(t, "2024", rec.Year)
	assert.Equal(t, "https://arxiv.org/abs/2401.12345", rec.URL)
	require.Len(t, rec.Authors, 2)
	assert.Equal(t, "Smith", rec.Authors[0].Family)
	assert.Equal(t, "Ada", rec.Authors[0].Given)
}

func TestWebpageResolver_TitlePriority(t *testing.T) {
	page := `<!doctype html><html><head>
		<title>Site Title | Example</title>
		<meta property="og:title" content="OG Title">
		<meta name="citation_title" content="The Real Citation Title">
		<meta name="citation_author" content="Fletcher, Kate">
		<meta name="citation_publication_date" content="2018/03/27">
	</head><body></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	r := NewWebpageResolver(srv.Client(), 2)
	rec, err := r.Resolve(context.Background(), occFor(srv.URL+"/article"))
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "The Real Citation Title", rec.Title)
	assert.Equal(t, "2018", rec.Year)
	require.Len(t, rec.Authors, 1)
	assert.Equal(t, "Fletcher", rec.Authors[0].Family)
}

func TestWebpageResolver_NoTitleYieldsNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<!doctype html><html><head></head><body>no metadata</body></html>`))
	}))
	defer srv.Close()

	r := NewWebpageResolver(srv.Client(), 2)
	rec, err := r.Resolve(context.Background(), occFor(srv.URL+"/bare"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestWebpageResolver_FetchErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := NewWebpageResolver(srv.Client(), 2)
	_, err := r.Resolve(context.Background(), occFor(srv.URL+"/missing"))
	assert.Error(t, err)
}

func TestExtractPageMeta_FallbackToDocumentTitle(t *testing.T) {
	meta, err := extractPageMeta([]byte(`<html><head><title>Only The Doc Title</title></head></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Only The Doc Title", meta.title)
}

func TestCache_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "metadata.json")

	c := OpenCache(path)
	c.Put("doi:10.1/x", &library.Record{Type: "article", Title: "Cached"})
	require.NoError(t, c.Save())

	reopened := OpenCache(path)
	rec, ok := reopened.Get("doi:10.1/x")
	require.True(t, ok)
	assert.Equal(t, "Cached", rec.Title)
	assert.Equal(t, 1, reopened.Len())
}

// rewriteHost returns an HTTP client that redirects every request to the
// test server while preserving path and query.
func rewriteHost(srv *httptest.Server) HTTPDoer {
	return &hostRewriter{srv: srv}
}

type hostRewriter struct {
	srv *httptest.Server
}

func (h *hostRewriter) Do(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = "http"
	clone.URL.Host = h.srv.Listener.Addr().String()
	return h.srv.Client().Do(clone)
}
