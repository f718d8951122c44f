// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package ident extracts and canonicalizes bibliographic identifiers from
// URLs: DOIs, arXiv ids, ISBNs, and the URLs themselves.
//
// All functions are pure and deterministic. Unparseable input yields a zero
// value, never a panic or an error: callers treat "no identifier" as a
// normal outcome, and the matcher records it in its diagnostics.
//
// Canonical forms:
//   - DOI: lowercase, bare "10.xxxx/yyyy" with resolver prefixes, query,
//     fragment, and trailing punctuation removed.
//   - arXiv: "NNNN.NNNNN" (new scheme) or "subject/NNNNNNN" (old scheme),
//     version returned separately so indexing can ignore it while citation
//     output preserves it.
//   - ISBN: digits only, ISBN-10 normalized to ISBN-13, checksum validated.
//   - URL: scheme and host lowercased, default ports dropped, tracking
//     parameters removed, fragment removed, trailing slash removed.
package ident

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ArxivID is a canonical arXiv identifier with its version split off.
//
// ID is "2401.12345" or "cond-mat/9805021"; Version is "v2" or empty.
// Index lookups use ID alone; emitted eprint fields keep the version.
type ArxivID struct {
	ID      string
	Version string
}

// String returns the id with the version suffix reattached.
func (a ArxivID) String() string {
	return a.ID + a.Version
}

// doiPattern matches a DOI directory indicator and suffix inside a path.
// DOI suffixes may contain almost anything; the cleanup of trailing
// punctuation happens after the match.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/\S+`)

// arXiv identifier shapes. The new scheme is YYMM.NNNNN with an optional
// version; the old scheme is archive(.subject)/YYMMNNN.
var (
	arxivNewPattern = regexp.MustCompile(`^(\d{4}\.\d{4,5})(v\d+)?$`)
	arxivOldPattern = regexp.MustCompile(`^([a-z-]+(?:\.[A-Z]{2})?/\d{7})(v\d+)?$`)
)

// trackingParams is the deny-list of query parameters stripped during URL
// normalization. Matching is exact except for the "utm_" prefix.
var trackingParams = map[string]bool{
	"fbclid":      true,
	"gclid":       true,
	"dclid":       true,
	"msclkid":     true,
	"igshid":      true,
	"mc_cid":      true,
	"mc_eid":      true,
	"ref":         true,
	"ref_":        true,
	"ref_src":     true,
	"cmpid":       true,
	"spm":         true,
	"_hsenc":      true,
	"_hsmi":       true,
	"source":      true,
	"smid":        true,
	"share_token": true,
}

// defaultPorts maps schemes to ports that are implied and therefore dropped.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ftp":   "21",
}

// ExtractDOI returns the canonical DOI carried by rawURL, or "" when the
// URL carries none.
//
// Recognized inputs include resolver URLs (https://doi.org/10.1145/3618394,
// http://dx.doi.org/10.1145/3618394), "doi:" prefixed strings, and DOIs
// embedded in publisher URL paths.
func ExtractDOI(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ""
	}

	// "doi:10.x/y" prefix form.
	if rest, ok := strings.CutPrefix(strings.ToLower(s), "doi:"); ok {
		s = rest
	}

	// Cut query and fragment before pattern matching; DOI suffixes never
	// legitimately contain them in citation URLs.
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = strings.TrimPrefix(u.EscapedPath(), "/")
		if dec, err := url.PathUnescape(s); err == nil {
			s = dec
		}
	} else {
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
	}

	m := doiPattern.FindString(s)
	if m == "" {
		return ""
	}
	if i := strings.IndexAny(m, "?#"); i >= 0 {
		m = m[:i]
	}
	m = strings.TrimRight(m, "./,;:)]}\"'")
	if !strings.Contains(m, "/") {
		return ""
	}
	return strings.ToLower(m)
}

// ExtractArxiv returns the canonical arXiv identifier carried by rawURL and
// whether one was found.
//
// Recognized inputs: arxiv.org/abs/<id>, arxiv.org/pdf/<id>(.pdf), and
// "arXiv:<id>" prefixed strings. A trailing version suffix (v1, v2, ...) is
// split into the Version field.
func ExtractArxiv(rawURL string) (ArxivID, bool) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return ArxivID{}, false
	}

	if len(s) > 6 && strings.EqualFold(s[:6], "arxiv:") {
		return splitArxiv(strings.TrimSpace(s[6:]))
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ArxivID{}, false
	}
	host := strings.ToLower(u.Hostname())
	if host != "arxiv.org" && host != "www.arxiv.org" && host != "export.arxiv.org" {
		return ArxivID{}, false
	}

	path := strings.Trim(u.EscapedPath(), "/")
	var id string
	switch {
	case strings.HasPrefix(path, "abs/"):
		id = strings.TrimPrefix(path, "abs/")
	case strings.HasPrefix(path, "pdf/"):
		id = strings.TrimPrefix(path, "pdf/")
		id = strings.TrimSuffix(id, ".pdf")
	default:
		return ArxivID{}, false
	}
	return splitArxiv(id)
}

// splitArxiv validates an id against the two arXiv schemes and splits the
// version suffix.
func splitArxiv(id string) (ArxivID, bool) {
	if m := arxivNewPattern.FindStringSubmatch(id); m != nil {
		return ArxivID{ID: m[1], Version: m[2]}, true
	}
	if m := arxivOldPattern.FindStringSubmatch(id); m != nil {
		return ArxivID{ID: m[1], Version: m[2]}, true
	}
	return ArxivID{}, false
}

// ExtractISBN returns the canonical ISBN-13 carried by rawURL, or "" when
// the URL carries none.
//
// Recognized inputs: Amazon /dp/ and /gp/product/ paths, and path segments
// that are themselves a valid ISBN-10 or ISBN-13 (common on publisher book
// pages). The checksum is validated; an invalid checksum yields "".
func ExtractISBN(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, seg := range segments {
		// Amazon forms: .../dp/<isbn>, .../gp/product/<isbn>
		if (seg == "dp" || seg == "product") && i+1 < len(segments) {
			if isbn := canonicalISBN(segments[i+1]); isbn != "" {
				return isbn
			}
		}
	}
	// Publisher pages often carry the ISBN as a bare segment.
	for _, seg := range segments {
		if isbn := canonicalISBN(seg); isbn != "" {
			return isbn
		}
	}
	return ""
}

// CanonicalISBN strips separators, validates the checksum, and converts
// ISBN-10 to ISBN-13. Returns "" for anything that is not a valid ISBN.
//
// Index lookups always use this form. The digits as present in the source
// library are kept separately so emitted citation keys reflect what the
// user's library actually records.
func CanonicalISBN(s string) string {
	return canonicalISBN(s)
}

// ISBNDigits strips separators from s and returns the bare digit string
// (with a possible trailing X) when s has ISBN shape, without converting
// between ISBN-10 and ISBN-13. Returns "" for non-ISBN input.
func ISBNDigits(s string) string {
	var digits []byte
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, byte(r))
		case r == 'X' || r == 'x':
			digits = append(digits, 'X')
		case r == '-' || r == ' ':
		default:
			return ""
		}
	}
	if n := len(digits); n != 10 && n != 13 {
		return ""
	}
	return string(digits)
}

// canonicalISBN strips separators, validates the checksum, and converts
// ISBN-10 to ISBN-13. Returns "" for anything that is not a valid ISBN.
func canonicalISBN(s string) string {
	var digits []byte
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, byte(r))
		case r == 'X' || r == 'x':
			digits = append(digits, 'X')
		case r == '-' || r == ' ':
			// separators allowed
		default:
			return ""
		}
	}
	switch len(digits) {
	case 10:
		if !validISBN10(digits) {
			return ""
		}
		return isbn10to13(digits)
	case 13:
		if digits[9] == 'X' || !validISBN13(digits) {
			return ""
		}
		return string(digits)
	default:
		return ""
	}
}

func validISBN10(d []byte) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		var v int
		if d[i] == 'X' {
			if i != 9 {
				return false
			}
			v = 10
		} else {
			v = int(d[i] - '0')
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func validISBN13(d []byte) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		v := int(d[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}

// isbn10to13 converts a valid ISBN-10 to its 978-prefixed ISBN-13 form,
// recomputing the check digit.
func isbn10to13(d []byte) string {
	body := "978" + string(d[:9])
	sum := 0
	for i := 0; i < 12; i++ {
		v := int(body[i] - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	check := (10 - sum%10) % 10
	return body + strconv.Itoa(check)
}

// NormalizeURL returns the canonical lookup form of rawURL, or "" when the
// input cannot be parsed as an absolute http(s)/ftp URL.
//
// Normalization: scheme and host lowercased, default ports dropped,
// tracking parameters from the deny-list removed, remaining query
// parameters sorted for stability, fragment removed, trailing slash
// removed. Percent-encoding and internationalized hosts are handled by
// net/url, not by string surgery.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if trackingParams[k] || strings.HasPrefix(k, "utm_") {
				q.Del(k)
			}
		}
		u.RawQuery = encodeSorted(q)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = strings.TrimSuffix(u.RawPath, "/")

	return u.String()
}

// encodeSorted encodes query values with keys in sorted order so the
// canonical form is stable regardless of authoring order.
func encodeSorted(q url.Values) string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}
