// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

// crossRefBaseURL is the CrossRef works endpoint.
const crossRefBaseURL = "https://api.crossref.org/works/"

// CrossRefResolver fetches DOI metadata from CrossRef.
type CrossRefResolver struct {
	client   HTTPDoer
	attempts uint
}

// NewCrossRefResolver creates the CrossRef resolver.
func NewCrossRefResolver(client HTTPDoer, maxAttempts uint) *CrossRefResolver {
	return &CrossRefResolver{client: client, attempts: maxAttempts}
}

func (r *CrossRefResolver) Name() string { return "crossref" }

func (r *CrossRefResolver) Applies(occ citation.Occurrence) bool {
	return ident.ExtractDOI(occ.RawURL) != ""
}

func (r *CrossRefResolver) CacheKey(occ citation.Occurrence) string {
	if doi := ident.ExtractDOI(occ.RawURL); doi != "" {
		return "doi:" + doi
	}
	return ""
}

// crossRefResponse is the subset of the CrossRef works payload we map.
type crossRefResponse struct {
	Message struct {
		Title          []string `json:"title"`
		ContainerTitle []string `json:"container-title"`
		Type           string   `json:"type"`
		DOI            string   `json:"DOI"`
		URL            string   `json:"URL"`
		Volume         string   `json:"volume"`
		Issue          string   `json:"issue"`
		Page           string   `json:"page"`
		Publisher      string   `json:"publisher"`
		Author         []struct {
			Family string `json:"family"`
			Given  string `json:"given"`
			Name   string `json:"name"` // corporate authors
		} `json:"author"`
		Issued struct {
			DateParts [][]int `json:"date-parts"`
		} `json:"issued"`
	} `json:"message"`
}

// Resolve fetches and maps the CrossRef record for the occurrence's DOI.
func (r *CrossRefResolver) Resolve(ctx context.Context, occ citation.Occurrence) (*library.Record, error) {
	doi := ident.ExtractDOI(occ.RawURL)
	if doi == "" {
		return nil, fmt.Errorf("occurrence carries no DOI")
	}

	body, err := fetchBody(ctx, r.client, crossRefBaseURL+doi, "application/json", r.attempts)
	if err != nil {
		return nil, fmt.Errorf("crossref %s: %w", doi, err)
	}

	var payload crossRefResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("crossref %s: invalid response: %w", doi, err)
	}
	msg := payload.Message

	rec := &library.Record{
		Type:      crossRefType(msg.Type),
		DOI:       ident.ExtractDOI("doi:" + msg.DOI),
		URL:       msg.URL,
		Volume:    msg.Volume,
		Issue:     msg.Issue,
		Pages:     msg.Page,
		Publisher: msg.Publisher,
	}
	if len(msg.Title) > 0 {
		rec.Title = msg.Title[0]
	}
	if len(msg.ContainerTitle) > 0 {
		rec.Venue = msg.ContainerTitle[0]
	}
	if rec.DOI == "" {
		rec.DOI = doi
	}
	if len(msg.Issued.DateParts) > 0 && len(msg.Issued.DateParts[0]) > 0 {
		rec.Year = fmt.Sprintf("%d", msg.Issued.DateParts[0][0])
	}
	for _, a := range msg.Author {
		switch {
		case a.Name != "":
			rec.Authors = append(rec.Authors, library.Author{Family: a.Name, Corporate: true})
		case a.Family != "":
			rec.Authors = append(rec.Authors, library.Author{Family: a.Family, Given: a.Given})
		}
	}

	return rec, nil
}

// crossRefType maps CrossRef work types onto BibTeX entry types.
func crossRefType(t string) string {
	switch t {
	case "journal-article":
		return "article"
	case "book", "monograph", "edited-book":
		return "book"
	case "book-chapter":
		return "incollection"
	case "proceedings-article":
		return "inproceedings"
	case "report":
		return "techreport"
	case "dissertation":
		return "phdthesis"
	default:
		return "misc"
	}
}
