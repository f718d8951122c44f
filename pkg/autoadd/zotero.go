// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/kraklabs/mdtex/pkg/library"
)

// Environment variables carrying the Zotero Web API credentials. Their
// absence disables PolicyReal (the pipeline downgrades to dry-run); it
// never aborts a run.
const (
	EnvZoteroAPIKey = "MDTEX_ZOTERO_API_KEY"
	EnvZoteroUserID = "MDTEX_ZOTERO_USER_ID"
)

// zoteroBaseURL is the Zotero Web API root.
const zoteroBaseURL = "https://api.zotero.org"

// ZoteroWriter persists records to a Zotero library via the Web API.
type ZoteroWriter struct {
	client HTTPDoer
	apiKey string
	userID string
}

// NewZoteroWriter builds a writer from environment credentials. Returns
// nil (no writer, so PolicyReal is unavailable) when either variable is
// missing.
func NewZoteroWriter(client HTTPDoer) *ZoteroWriter {
	apiKey := os.Getenv(EnvZoteroAPIKey)
	userID := os.Getenv(EnvZoteroUserID)
	if apiKey == "" || userID == "" {
		return nil
	}
	return &ZoteroWriter{client: client, apiKey: apiKey, userID: userID}
}

// zoteroItem is the Web API item shape for creation.
type zoteroItem struct {
	ItemType string          `json:"itemType"`
	Title    string          `json:"title"`
	Creators []zoteroCreator `json:"creators,omitempty"`
	Date     string          `json:"date,omitempty"`
	URL      string          `json:"url,omitempty"`
	DOI      string          `json:"DOI,omitempty"`
	ISBN     string          `json:"ISBN,omitempty"`
	Extra    string          `json:"extra,omitempty"`
}

type zoteroCreator struct {
	CreatorType string `json:"creatorType"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"` // corporate single-field name
}

// Add creates the record as a new item in the user's Zotero library.
func (w *ZoteroWriter) Add(ctx context.Context, rec *library.Record) error {
	item := zoteroItem{
		ItemType: zoteroItemType(rec.Type),
		Title:    rec.Title,
		Date:     rec.Year,
		URL:      rec.URL,
		DOI:      rec.DOI,
		ISBN:     rec.ISBN,
	}
	if rec.Arxiv.ID != "" {
		item.Extra = "arXiv:" + rec.Arxiv.String()
	}
	for _, a := range rec.Authors {
		if a.Corporate {
			item.Creators = append(item.Creators, zoteroCreator{
				CreatorType: "author", Name: a.Family,
			})
			continue
		}
		item.Creators = append(item.Creators, zoteroCreator{
			CreatorType: "author", FirstName: a.Given, LastName: a.Family,
		})
	}

	payload, err := json.Marshal([]zoteroItem{item})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/users/%s/items", zoteroBaseURL, w.userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Zotero-API-Key", w.apiKey)
	req.Header.Set("Zotero-API-Version", "3")
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("zotero write: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("zotero write: %s: %s", resp.Status, bytes.TrimSpace(body))
	}
	return nil
}

// zoteroItemType maps BibTeX entry types back to Zotero item types.
func zoteroItemType(entryType string) string {
	switch entryType {
	case "article":
		return "journalArticle"
	case "book":
		return "book"
	case "incollection":
		return "bookSection"
	case "inproceedings":
		return "conferencePaper"
	case "phdthesis", "mastersthesis":
		return "thesis"
	case "techreport":
		return "report"
	default:
		return "webpage"
	}
}
