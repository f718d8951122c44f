// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"fmt"
	"strings"

	"github.com/kraklabs/mdtex/pkg/bibgen"
	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/library"
)

// EntryValidator gates what auto-add may persist. Every rule exists
// because a real library was once polluted by its absence:
//
//   - The link's display text is never accepted as a title; a fetch that
//     produced nothing better yields no record at all.
//   - Stub titles ("Web page by X", "Untitled") and bare-domain titles
//     are rejected.
//   - Corporate authors stay whole; a record whose corporate author was
//     split into family/given parts is rejected.
//   - An arXiv record must carry both the arXiv id and the URL.
type EntryValidator struct {
	policy bibgen.Policy
}

// NewEntryValidator creates a validator with the default policy lists.
func NewEntryValidator() *EntryValidator {
	return &EntryValidator{policy: bibgen.DefaultPolicy()}
}

// Validate returns an error describing the first rule the candidate
// violates, or nil when the record may enter the library.
func (v *EntryValidator) Validate(rec *library.Record, occ citation.Occurrence) error {
	title := strings.TrimSpace(rec.Title)
	if title == "" {
		return fmt.Errorf("no title: refusing to fabricate one")
	}
	if equalsLinkText(title, occ.Text) {
		return fmt.Errorf("title %q is the link's display text, not fetched metadata", title)
	}
	if v.policy.IsStubTitle(title) {
		return fmt.Errorf("stub title %q", title)
	}
	if v.policy.IsDomainTitle(title) {
		return fmt.Errorf("bare-domain title %q", title)
	}

	for _, a := range rec.Authors {
		if bibgen.IsSuspectAuthor(a.Family) {
			return fmt.Errorf("placeholder author %q", a.Family)
		}
		if !a.Corporate && a.Given != "" && v.policy.IsOrgName(a.Given+" "+a.Family) {
			return fmt.Errorf("organization name %q split into author parts", a.Given+" "+a.Family)
		}
	}

	if rec.Arxiv.ID != "" && rec.URL == "" {
		return fmt.Errorf("arXiv record must carry both the arXiv id and the URL")
	}

	return nil
}

// equalsLinkText compares a candidate title to the occurrence display
// text, ignoring case and surrounding whitespace.
func equalsLinkText(title, linkText string) bool {
	return strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(linkText))
}
