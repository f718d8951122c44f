// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testing

import (
	"os"
	"path/filepath"
	"testing"
)

// SampleRDF is a Zotero-style RDF export with four bibliographic items
// (a DOI article, an ISBN book, an arXiv preprint, and a corporate-author
// webpage) plus an attachment that must not count.
const SampleRDF = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF
 xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
 xmlns:z="http://www.zotero.org/namespaces/export#"
 xmlns:dcterms="http://purl.org/dc/terms/"
 xmlns:dc="http://purl.org/dc/elements/1.1/"
 xmlns:foaf="http://xmlns.com/foaf/0.1/"
 xmlns:bib="http://purl.org/net/biblio#"
 xmlns:prism="http://prismstandard.org/namespaces/1.2/basic/">
  <bib:Article rdf:about="#item_1">
    <z:itemType>journalArticle</z:itemType>
    <dc:title>Designing for Longevity</dc:title>
    <dc:date>2024</dc:date>
    <bib:authors><rdf:Seq><rdf:li><foaf:Person>
      <foaf:surname>Smith</foaf:surname><foaf:givenName>Ada</foaf:givenName>
    </foaf:Person></rdf:li></rdf:Seq></bib:authors>
    <dcterms:isPartOf><bib:Journal>
      <dc:title>Journal of Sustainable Design</dc:title>
    </bib:Journal></dcterms:isPartOf>
    <dc:identifier>DOI 10.1145/3618394</dc:identifier>
  </bib:Article>
  <bib:Book rdf:about="urn:isbn:1-138-02101-6">
    <z:itemType>book</z:itemType>
    <dc:title>Craft of Use: Post-Growth Fashion</dc:title>
    <dc:date>2016</dc:date>
    <bib:authors><rdf:Seq><rdf:li><foaf:Person>
      <foaf:surname>Fletcher</foaf:surname><foaf:givenName>Kate</foaf:givenName>
    </foaf:Person></rdf:li></rdf:Seq></bib:authors>
    <dc:identifier>ISBN 1-138-02101-6</dc:identifier>
    <dc:identifier><dcterms:URI>
      <rdf:value>https://www.amazon.de/-/en/Craft-Use-Post-Growth-Kate-Fletcher/dp/1138021016</rdf:value>
    </dcterms:URI></dc:identifier>
  </bib:Book>
  <bib:Article rdf:about="#item_3">
    <z:itemType>preprint</z:itemType>
    <dc:title>Attention Is Not Enough</dc:title>
    <dc:date>2024-01-20</dc:date>
    <bib:authors><rdf:Seq><rdf:li><foaf:Person>
      <foaf:surname>Smith</foaf:surname><foaf:givenName>Ada</foaf:givenName>
    </foaf:Person></rdf:li></rdf:Seq></bib:authors>
    <dc:identifier><dcterms:URI>
      <rdf:value>https://arxiv.org/abs/2401.12345</rdf:value>
    </dcterms:URI></dc:identifier>
  </bib:Article>
  <bib:Document rdf:about="#item_4">
    <z:itemType>webpage</z:itemType>
    <dc:title>Ecodesign Regulations</dc:title>
    <dc:date>2024</dc:date>
    <bib:authors><rdf:Seq><rdf:li><foaf:Organization>
      <foaf:name>European Commission</foaf:name>
    </foaf:Organization></rdf:li></rdf:Seq></bib:authors>
    <dc:identifier><dcterms:URI>
      <rdf:value>https://commission.europa.eu/energy/ecodesign_en</rdf:value>
    </dcterms:URI></dc:identifier>
  </bib:Document>
  <z:Attachment rdf:about="#attachment_1">
    <dc:title>Full Text PDF</dc:title>
  </z:Attachment>
</rdf:RDF>`

// SampleMarkdown cites every item of SampleRDF once, in mixed identifier
// forms, plus one ordinary hyperlink that must stay untouched.
const SampleMarkdown = `# Use Before Growth

Wardrobe studies [Fletcher (2016)](https://www.amazon.de/-/en/Craft-Use-Post-Growth-Kate-Fletcher/dp/1138021016)
show garments outlive their use value. Durability metrics were
formalized by [Smith (2024)](https://doi.org/10.1145/3618394), while
attention-based models [Smith (2024a)](https://arxiv.org/abs/2401.12345)
disagree. Policy follows [European Commission (2024)](https://commission.europa.eu/energy/ecodesign_en?utm_source=newsletter).

See [the project page](https://example.com/project) for updates.
`

// WriteFixture writes content into dir under name and returns the path.
func WriteFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating fixture dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// SetupManuscript writes the sample manuscript and RDF library into a
// fresh temporary directory and returns their paths plus an output dir.
func SetupManuscript(t *testing.T) (mdPath, rdfPath, outDir string) {
	t.Helper()
	dir := t.TempDir()
	mdPath = WriteFixture(t, dir, "paper.md", SampleMarkdown)
	rdfPath = WriteFixture(t, dir, "library.rdf", SampleRDF)
	outDir = filepath.Join(dir, "out")
	return mdPath, rdfPath, outDir
}
