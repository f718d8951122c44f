// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bibgen

import (
	"fmt"
	"strings"

	"github.com/kraklabs/mdtex/pkg/library"
)

// keyClass ranks identifier classes for emission order: the strongest
// identifier sorts first.
const (
	classDOI = iota
	classISBN
	classArxiv
	classURL
	classNone
)

// KeyFor generates the citation key for a record from its strongest
// available identifier: doi_* over isbn_* over arxiv_* over a slug of the
// normalized URL. Keys are lowercase [a-z0-9_] only and deterministic for
// a given record.
func KeyFor(rec *library.Record) (string, int) {
	switch {
	case rec.DOI != "":
		return "doi_" + slugify(rec.DOI), classDOI
	case rec.ISBN != "":
		return "isbn_" + strings.ToLower(rec.ISBN), classISBN
	case rec.Arxiv.ID != "":
		return "arxiv_" + slugify(rec.Arxiv.ID), classArxiv
	case rec.URL != "":
		u := rec.CanonicalURL()
		if u == "" {
			u = rec.URL
		}
		u = strings.TrimPrefix(u, "https://")
		u = strings.TrimPrefix(u, "http://")
		return "url_" + truncate(slugify(u), 60), classURL
	default:
		return "", classNone
	}
}

// slugify lowercases s and folds every non [a-z0-9] run into a single
// underscore.
func slugify(s string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSuffix(s[:n], "_")
}

// keyGen assigns collision-free keys deterministically. When two records
// produce the same base key, later records (in assignment order) get a
// numeric suffix: key, key_2, key_3.
type keyGen struct {
	policy Policy
	used   map[string]bool
}

func newKeyGen(policy Policy) *keyGen {
	return &keyGen{policy: policy, used: make(map[string]bool)}
}

// assign returns the unique key for rec, or an error when the record has
// no identifier to derive one from or the result has a temp-key shape.
func (g *keyGen) assign(rec *library.Record) (string, int, error) {
	base, class := KeyFor(rec)
	if base == "" {
		return "", classNone, fmt.Errorf("record %s carries no identifier to derive a citation key from", rec.ID)
	}
	if g.policy.IsTempKey(base) {
		return "", class, fmt.Errorf("generated key %q has a temporary-key shape; refusing to emit", base)
	}

	key := base
	for n := 2; g.used[key]; n++ {
		key = fmt.Sprintf("%s_%d", base, n)
	}
	g.used[key] = true
	return key, class, nil
}
