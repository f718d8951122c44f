// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

// arxivBaseURL is the arXiv API query endpoint. The API terms ask for at
// most one request every three seconds; the gateway's serialized batch
// loop plus backoff keeps us under that in practice.
const arxivBaseURL = "http://export.arxiv.org/api/query"

// ArxivResolver fetches arXiv metadata from the official Atom API.
type ArxivResolver struct {
	client   HTTPDoer
	attempts uint
}

// NewArxivResolver creates the arXiv resolver.
func NewArxivResolver(client HTTPDoer, maxAttempts uint) *ArxivResolver {
	return &ArxivResolver{client: client, attempts: maxAttempts}
}

func (r *ArxivResolver) Name() string { return "arxiv" }

func (r *ArxivResolver) Applies(occ citation.Occurrence) bool {
	_, ok := ident.ExtractArxiv(occ.RawURL)
	return ok
}

func (r *ArxivResolver) CacheKey(occ citation.Occurrence) string {
	if a, ok := ident.ExtractArxiv(occ.RawURL); ok {
		return "arxiv:" + a.ID
	}
	return ""
}

// arxivFeed is the Atom response shape of the arXiv API.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Published string `xml:"published"`
	DOI       string `xml:"doi"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Resolve fetches and maps the arXiv entry for the occurrence's id.
func (r *ArxivResolver) Resolve(ctx context.Context, occ citation.Occurrence) (*library.Record, error) {
	a, ok := ident.ExtractArxiv(occ.RawURL)
	if !ok {
		return nil, fmt.Errorf("occurrence carries no arXiv id")
	}

	query := url.Values{"id_list": {a.String()}, "max_results": {"1"}}
	body, err := fetchBody(ctx, r.client, arxivBaseURL+"?"+query.Encode(), "application/atom+xml", r.attempts)
	if err != nil {
		return nil, fmt.Errorf("arxiv %s: %w", a.ID, err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("arxiv %s: invalid Atom response: %w", a.ID, err)
	}
	if len(feed.Entries) == 0 {
		return nil, nil
	}
	entry := feed.Entries[0]

	// The API answers with an entry even for unknown ids; those carry an
	// error title and no authors.
	title := strings.Join(strings.Fields(entry.Title), " ")
	if title == "" || strings.HasPrefix(strings.ToLower(title), "error") && len(entry.Authors) == 0 {
		return nil, nil
	}

	rec := &library.Record{
		Type:  "misc",
		Title: title,
		Arxiv: a,
		URL:   "https://arxiv.org/abs/" + a.String(),
	}
	if entry.DOI != "" {
		rec.DOI = ident.ExtractDOI("doi:" + entry.DOI)
	}
	if len(entry.Published) >= 4 {
		rec.Year = entry.Published[:4]
	}
	for _, author := range entry.Authors {
		name := strings.TrimSpace(author.Name)
		if name == "" {
			continue
		}
		// arXiv serves "Given Family" order.
		if i := strings.LastIndex(name, " "); i > 0 {
			rec.Authors = append(rec.Authors, library.Author{
				Family: name[i+1:],
				Given:  name[:i],
			})
		} else {
			rec.Authors = append(rec.Authors, library.Author{Family: name})
		}
	}

	return rec, nil
}
