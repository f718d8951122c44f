// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package bibgen renders matched reference records to BibTeX with stable,
// collision-free keys, and sanitizes the rendered text with deterministic
// rule-based repairs before it reaches the LaTeX toolchain.
package bibgen

import (
	"regexp"
	"strings"
)

// Policy is the data side of the sanitizer and key generator: the deny
// lists and patterns the rules evaluate against. The lists ship with
// defaults matching what actually shows up in dirty libraries, and a
// policy file can extend them. They are data, not code, because the
// authoritative sets drift as new defect sources appear.
type Policy struct {
	// DomainTitles are bare domains that betray a failed metadata fetch
	// when they appear as an entry's whole title.
	DomainTitles []string `yaml:"domain_titles"`

	// StubTitlePrefixes flag placeholder titles left by scrapers.
	StubTitlePrefixes []string `yaml:"stub_title_prefixes"`

	// OrgNameWords mark author family names that are organizations, not
	// people, when no given name accompanies them.
	OrgNameWords []string `yaml:"org_name_words"`

	// TempKeyPrefixes are citation key shapes a reader could mistake for
	// unresolved placeholders. Emitting one is a fatal defect.
	TempKeyPrefixes []string `yaml:"temp_key_prefixes"`
}

// DefaultPolicy returns the built-in lists.
func DefaultPolicy() Policy {
	return Policy{
		DomainTitles: []string{
			"amazon.com", "amazon.de", "amazon.co.uk", "www.amazon.com",
			"github.com", "www.github.com",
			"arxiv.org", "www.arxiv.org",
			"youtube.com", "www.youtube.com",
			"twitter.com", "x.com",
			"linkedin.com", "www.linkedin.com",
			"medium.com",
			"bloomberg.com", "www.bloomberg.com",
			"nytimes.com", "www.nytimes.com",
			"theguardian.com", "www.theguardian.com",
		},
		StubTitlePrefixes: []string{
			"web page by",
			"webpage by",
			"untitled",
			"no title",
			"document title",
		},
		OrgNameWords: []string{
			"inc", "ltd", "llc", "gmbh", "plc", "corp", "corporation",
			"commission", "committee", "council", "institute", "institution",
			"university", "agency", "association", "organization",
			"organisation", "foundation", "ministry", "department", "bureau",
			"society", "consortium", "office", "parliament", "programme",
			"panel", "group", "network", "initiative",
		},
		TempKeyPrefixes: []string{
			"tmp_", "temp_", "dryrun_", "placeholder_", "pending_",
			"unknown_", "missing_", "todo_", "fixme_",
		},
	}
}

// bareYearPattern matches titles that are nothing but a four-digit year.
var bareYearPattern = regexp.MustCompile(`^\d{4}[abc]?$`)

// IsDomainTitle reports whether title is a bare domain from the deny list
// or otherwise host-shaped (dotted, no spaces, known TLD tail).
func (p Policy) IsDomainTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return false
	}
	for _, d := range p.DomainTitles {
		if t == d {
			return true
		}
	}
	// Host shape: "example.co.uk" style with no spaces and at least one
	// dot, ending in a letters-only label of 2-6 runes.
	if strings.ContainsAny(t, " \t") || !strings.Contains(t, ".") {
		return false
	}
	last := t[strings.LastIndex(t, ".")+1:]
	if len(last) < 2 || len(last) > 6 {
		return false
	}
	for _, r := range last {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	for _, r := range t {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

// IsStubTitle reports whether title matches a placeholder pattern: a
// documented stub prefix, a bare year, or an empty string.
func (p Policy) IsStubTitle(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return true
	}
	for _, prefix := range p.StubTitlePrefixes {
		if t == prefix || strings.HasPrefix(t, prefix+" ") {
			return true
		}
	}
	return bareYearPattern.MatchString(t)
}

// IsOrgName reports whether a family name with no given name looks like an
// organization per the deny list.
func (p Policy) IsOrgName(family string) bool {
	for _, word := range strings.Fields(strings.ToLower(family)) {
		word = strings.Trim(word, ".,()")
		for _, org := range p.OrgNameWords {
			if word == org {
				return true
			}
		}
	}
	return false
}

// IsTempKey reports whether key has a placeholder shape forbidden in
// emitted output.
func (p Policy) IsTempKey(key string) bool {
	k := strings.ToLower(key)
	for _, prefix := range p.TempKeyPrefixes {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// IsSuspectAuthor reports whether the author surface is a fabricated
// placeholder ("Unknown", "Anonymous").
func IsSuspectAuthor(name string) bool {
	n := strings.ToLower(strings.Trim(strings.TrimSpace(name), "{}"))
	return n == "unknown" || n == "anonymous" || n == "n.a." || n == "na" ||
		strings.HasPrefix(n, "unknown ") || strings.HasPrefix(n, "anonymous ")
}
