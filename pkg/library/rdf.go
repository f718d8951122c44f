// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package library

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/kraklabs/mdtex/pkg/ident"
)

// XML namespaces used by Zotero RDF exports.
const (
	nsRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsZotero  = "http://www.zotero.org/namespaces/export#"
	nsDC      = "http://purl.org/dc/elements/1.1/"
	nsDCTerms = "http://purl.org/dc/terms/"
	nsBib     = "http://purl.org/net/biblio#"
	nsFoaf    = "http://xmlns.com/foaf/0.1/"
	nsPrism   = "http://prismstandard.org/namespaces/1.2/basic/"
	nsLink    = "http://purl.org/rss/1.0/modules/link/"
)

// rdfItem is the decoded shape of one bibliographic element. The same
// struct covers bib:Article, bib:Book, bib:Thesis, rdf:Description with a
// z:itemType, and the other item classes; absent fields stay empty.
type rdfItem struct {
	About       string          `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# about,attr"`
	ItemType    string          `xml:"http://www.zotero.org/namespaces/export# itemType"`
	Title       string          `xml:"http://purl.org/dc/elements/1.1/ title"`
	Date        string          `xml:"http://purl.org/dc/elements/1.1/ date"`
	Identifiers []rdfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Authors     rdfAuthors      `xml:"http://purl.org/net/biblio# authors"`
	Pages       string          `xml:"http://purl.org/net/biblio# pages"`
	Publisher   rdfPublisher    `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	IsPartOf    rdfPartOf       `xml:"http://purl.org/dc/terms/ isPartOf"`
	Volume      string          `xml:"http://prismstandard.org/namespaces/1.2/basic/ volume"`
	Number      string          `xml:"http://prismstandard.org/namespaces/1.2/basic/ number"`
}

// rdfIdentifier is either an inline identifier string ("DOI 10.1145/...",
// "ISBN 978-...") or a nested dcterms:URI with an rdf:value.
type rdfIdentifier struct {
	Raw string `xml:",chardata"`
	URI rdfURI `xml:"http://purl.org/dc/terms/ URI"`
}

type rdfURI struct {
	Value string `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# value"`
}

type rdfAuthors struct {
	Seq rdfSeq `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# Seq"`
}

type rdfSeq struct {
	Li []rdfLi `xml:"http://www.w3.org/1999/02/22-rdf-syntax-ns# li"`
}

type rdfLi struct {
	Person rdfPerson `xml:"http://xmlns.com/foaf/0.1/ Person"`
	Org    rdfOrg    `xml:"http://xmlns.com/foaf/0.1/ Organization"`
}

type rdfPerson struct {
	Surname string `xml:"http://xmlns.com/foaf/0.1/ surname"`
	Given   string `xml:"http://xmlns.com/foaf/0.1/ givenName"`
}

type rdfOrg struct {
	Name string `xml:"http://xmlns.com/foaf/0.1/ name"`
}

type rdfPublisher struct {
	Org rdfOrg `xml:"http://xmlns.com/foaf/0.1/ Organization"`
}

type rdfPartOf struct {
	Journal rdfContainer `xml:"http://purl.org/net/biblio# Journal"`
	Book    rdfContainer `xml:"http://purl.org/net/biblio# Book"`
}

type rdfContainer struct {
	Title       string          `xml:"http://purl.org/dc/elements/1.1/ title"`
	Volume      string          `xml:"http://prismstandard.org/namespaces/1.2/basic/ volume"`
	Number      string          `xml:"http://prismstandard.org/namespaces/1.2/basic/ number"`
	Identifiers []rdfIdentifier `xml:"http://purl.org/dc/elements/1.1/ identifier"`
}

// itemTypeMap maps Zotero item types to BibTeX entry types. Only types
// listed here count as bibliographic items; everything else (attachments,
// notes, collections) is excluded from the snapshot.
var itemTypeMap = map[string]string{
	"journalarticle":   "article",
	"magazinearticle":  "article",
	"newspaperarticle": "article",
	"preprint":         "misc",
	"book":             "book",
	"booksection":      "incollection",
	"conferencepaper":  "inproceedings",
	"thesis":           "phdthesis",
	"report":           "techreport",
	"webpage":          "misc",
	"blogpost":         "misc",
	"document":         "misc",
}

// rdfClassMap maps bib: element names to entry types for items that carry
// no z:itemType.
var rdfClassMap = map[string]string{
	"Article":     "article",
	"Book":        "book",
	"BookSection": "incollection",
	"Thesis":      "phdthesis",
	"Report":      "techreport",
	"Document":    "misc",
	"Data":        "misc",
}

// parseRDF decodes a Zotero-style RDF/XML export into reference records.
//
// The decoder walks the direct children of rdf:RDF. Attachments, memos,
// and collections are skipped entirely; they never count toward the
// snapshot size.
func parseRDF(raw []byte) ([]*Record, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var records []*Record
	depth := 0

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed RDF/XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if t.Name.Space != nsRDF || t.Name.Local != "RDF" {
					return nil, fmt.Errorf("not an RDF document: root element <%s>", t.Name.Local)
				}
				depth++
				continue
			}
			// Direct child of rdf:RDF: one exported item.
			rec, err := decodeRDFItem(dec, t)
			if err != nil {
				return nil, err
			}
			if rec != nil {
				records = append(records, rec)
			}
		case xml.EndElement:
			if depth > 0 && t.Name.Space == nsRDF && t.Name.Local == "RDF" {
				depth--
			}
		}
	}
	return records, nil
}

// decodeRDFItem decodes one top-level element, returning nil for
// non-bibliographic items.
func decodeRDFItem(dec *xml.Decoder, start xml.StartElement) (*Record, error) {
	// Non-bibliographic classes are skipped without decoding.
	if start.Name.Space == nsZotero && (start.Name.Local == "Attachment" || start.Name.Local == "Collection" || start.Name.Local == "UserItem") {
		return nil, dec.Skip()
	}
	if start.Name.Space == nsBib && start.Name.Local == "Memo" {
		return nil, dec.Skip()
	}
	if start.Name.Space == nsLink {
		return nil, dec.Skip()
	}

	var item rdfItem
	if err := dec.DecodeElement(&item, &start); err != nil {
		return nil, fmt.Errorf("decode <%s>: %w", start.Name.Local, err)
	}

	entryType := entryTypeFor(start.Name, item.ItemType)
	if entryType == "" {
		return nil, nil
	}

	rec := &Record{
		Type:  entryType,
		Title: strings.TrimSpace(item.Title),
		Year:  yearFrom(item.Date),
		Pages: strings.TrimSpace(item.Pages),
	}

	for _, li := range item.Authors.Seq.Li {
		switch {
		case li.Org.Name != "":
			rec.Authors = append(rec.Authors, Author{
				Family:    strings.TrimSpace(li.Org.Name),
				Corporate: true,
			})
		case li.Person.Surname != "":
			rec.Authors = append(rec.Authors, Author{
				Family: strings.TrimSpace(li.Person.Surname),
				Given:  strings.TrimSpace(li.Person.Given),
			})
		}
	}

	rec.Publisher = strings.TrimSpace(item.Publisher.Org.Name)

	container := item.IsPartOf.Journal
	if container.Title == "" {
		container = item.IsPartOf.Book
	}
	rec.Venue = strings.TrimSpace(container.Title)
	rec.Volume = firstNonEmpty(item.Volume, container.Volume)
	rec.Issue = firstNonEmpty(item.Number, container.Number)

	applyIdentifiers(rec, item.Identifiers)
	applyIdentifiers(rec, container.Identifiers)

	// An arXiv URL implies the arXiv identifier even when the export
	// carries no explicit eprint field.
	if rec.Arxiv.ID == "" && rec.URL != "" {
		if a, ok := ident.ExtractArxiv(rec.URL); ok {
			rec.Arxiv = a
		}
	}

	return rec, nil
}

// entryTypeFor resolves the BibTeX entry type from the z:itemType when
// present, falling back to the RDF class name. Returns "" for
// non-bibliographic items.
func entryTypeFor(name xml.Name, itemType string) string {
	if itemType != "" {
		return itemTypeMap[strings.ToLower(strings.TrimSpace(itemType))]
	}
	if name.Space == nsBib {
		return rdfClassMap[name.Local]
	}
	if name.Space == nsZotero {
		// z:Webpage and friends
		return itemTypeMap[strings.ToLower(name.Local)]
	}
	// rdf:Description without an item type is not a bibliographic item.
	return ""
}

// applyIdentifiers folds dc:identifier values into the record. Inline
// identifiers use "<SCHEME> <value>" form; URLs arrive as nested
// dcterms:URI elements.
func applyIdentifiers(rec *Record, ids []rdfIdentifier) {
	for _, id := range ids {
		if u := strings.TrimSpace(id.URI.Value); u != "" {
			if rec.URL == "" {
				rec.URL = u
			}
			continue
		}
		raw := strings.TrimSpace(id.Raw)
		if raw == "" {
			continue
		}
		scheme, value, found := strings.Cut(raw, " ")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToUpper(scheme) {
		case "DOI":
			if rec.DOI == "" {
				rec.DOI = ident.ExtractDOI("doi:" + value)
			}
		case "ISBN":
			if rec.ISBN == "" {
				if digits := ident.ISBNDigits(value); digits != "" {
					rec.ISBN = digits
				}
			}
		case "ARXIV":
			if rec.Arxiv.ID == "" {
				if a, ok := ident.ExtractArxiv("arXiv:" + value); ok {
					rec.Arxiv = a
				}
			}
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
