// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/library"
)

// WebpageResolver extracts reference metadata from a page's HTML head:
// citation_title and og:title meta tags, falling back to <title>.
//
// It is the weakest resolver and runs last. It never invents a title: a
// page without usable metadata resolves to nothing, and the validator
// additionally rejects stub and domain-shaped titles downstream.
type WebpageResolver struct {
	client   HTTPDoer
	attempts uint
}

// NewWebpageResolver creates the webpage resolver.
func NewWebpageResolver(client HTTPDoer, maxAttempts uint) *WebpageResolver {
	return &WebpageResolver{client: client, attempts: maxAttempts}
}

func (r *WebpageResolver) Name() string { return "webpage" }

func (r *WebpageResolver) Applies(occ citation.Occurrence) bool {
	return occ.CanonicalURL != ""
}

func (r *WebpageResolver) CacheKey(occ citation.Occurrence) string {
	if occ.CanonicalURL != "" {
		return "url:" + occ.CanonicalURL
	}
	return ""
}

// Resolve fetches the page and maps its head metadata.
func (r *WebpageResolver) Resolve(ctx context.Context, occ citation.Occurrence) (*library.Record, error) {
	body, err := fetchBody(ctx, r.client, occ.RawURL, "text/html", r.attempts)
	if err != nil {
		return nil, fmt.Errorf("webpage %s: %w", occ.RawURL, err)
	}

	meta, err := extractPageMeta(body)
	if err != nil {
		return nil, fmt.Errorf("webpage %s: %w", occ.RawURL, err)
	}
	if meta.title == "" {
		return nil, nil
	}

	rec := &library.Record{
		Type:  "misc",
		Title: meta.title,
		URL:   occ.RawURL,
		Year:  meta.year,
	}
	if meta.author != "" {
		rec.Authors = library.ParseAuthorList(meta.author)
	} else if meta.siteName != "" {
		rec.Authors = []library.Author{{Family: meta.siteName, Corporate: true}}
	}
	return rec, nil
}

type pageMeta struct {
	title    string
	author   string
	siteName string
	year     string
}

// extractPageMeta walks the HTML document tree and collects head
// metadata. Title priority: citation_title, og:title, <title>.
func extractPageMeta(raw []byte) (pageMeta, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return pageMeta{}, fmt.Errorf("parse HTML: %w", err)
	}

	var meta pageMeta
	var docTitle, ogTitle, citationTitle string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					docTitle = n.FirstChild.Data
				}
			case "meta":
				name := attr(n, "name")
				property := attr(n, "property")
				content := attr(n, "content")
				switch {
				case name == "citation_title":
					citationTitle = content
				case property == "og:title":
					ogTitle = content
				case name == "citation_author", name == "author":
					if meta.author == "" {
						meta.author = content
					}
				case property == "og:site_name":
					meta.siteName = content
				case name == "citation_publication_date", name == "citation_date":
					if len(content) >= 4 {
						meta.year = content[:4]
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	switch {
	case citationTitle != "":
		meta.title = citationTitle
	case ogTitle != "":
		meta.title = ogTitle
	default:
		meta.title = docTitle
	}
	meta.title = strings.Join(strings.Fields(meta.title), " ")
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
