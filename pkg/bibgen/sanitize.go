// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bibgen

import (
	"bytes"
	"fmt"
	gotok "go/token"
	"log/slog"
	"strings"

	"github.com/jschaf/bibtex/ast"
	"github.com/jschaf/bibtex/parser"

	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

// Defect names for the sanitizer report.
const (
	DefectDomainTitle   = "domain_as_title"
	DefectMissingTitle  = "missing_real_title"
	DefectStubTitle     = "stub_title"
	DefectOrgAuthor     = "org_as_person_author"
	DefectUnknownAuthor = "unknown_author"
	DefectMissingEprint = "missing_eprint"
)

// Finding is one sanitizer rule firing on one entry.
type Finding struct {
	Key      string `json:"key"`
	Defect   string `json:"defect"`
	Detail   string `json:"detail"`
	Repaired bool   `json:"repaired"`
	// Hard findings fail strict runs when unrepaired.
	Hard bool `json:"hard"`
}

// SanitizeReport is the structured outcome of a sanitizer pass: counts per
// defect, counts per repair, and the entries needing manual review.
type SanitizeReport struct {
	Defects     map[string]int `json:"defects"`
	Repairs     map[string]int `json:"repairs"`
	Findings    []Finding      `json:"findings,omitempty"`
	NeedsReview []string       `json:"needs_review,omitempty"`
}

// HardUnrepaired returns the count of hard findings that no rule could
// repair. Strict mode fails the pipeline when this is non-zero.
func (r *SanitizeReport) HardUnrepaired() int {
	n := 0
	for _, f := range r.Findings {
		if f.Hard && !f.Repaired {
			n++
		}
	}
	return n
}

func (r *SanitizeReport) add(f Finding) {
	r.Defects[f.Defect]++
	if f.Repaired {
		r.Repairs[f.Defect]++
	} else if f.Hard {
		r.NeedsReview = append(r.NeedsReview, f.Key)
	}
	r.Findings = append(r.Findings, f)
	slog.Debug("sanitize.finding", "key", f.Key, "defect", f.Defect,
		"repaired", f.Repaired, "detail", f.Detail)
}

// sanEntry is one parsed entry during sanitization: the ordered tag list
// preserves the input layout so an already-clean file round-trips
// byte-identically (the pass is idempotent).
type sanEntry struct {
	entryType string
	key       string
	tags      []sanTag
}

type sanTag struct {
	name  string
	value string
}

func (e *sanEntry) get(name string) string {
	for _, t := range e.tags {
		if t.name == name {
			return t.value
		}
	}
	return ""
}

func (e *sanEntry) set(name, value string) {
	for i, t := range e.tags {
		if t.name == name {
			e.tags[i].value = value
			return
		}
	}
	e.tags = append(e.tags, sanTag{name: name, value: value})
}

// Sanitize applies the deterministic repair rules to the rendered BibTeX
// and returns the repaired text plus the structured report.
//
// Repairs only ever draw on data from the library snapshot; the sanitizer
// never invents metadata. The pass is idempotent: sanitizing its own
// output is a no-op.
func Sanitize(bibText string, snap *library.Snapshot, policy Policy) (string, *SanitizeReport, error) {
	f, err := parser.ParseFile(gotok.NewFileSet(), "", bytes.NewReader([]byte(bibText)), 0)
	if err != nil {
		return "", nil, fmt.Errorf("parse bibliography for sanitizing: %w", err)
	}

	report := &SanitizeReport{
		Defects: make(map[string]int),
		Repairs: make(map[string]int),
	}

	var entries []*sanEntry
	for _, decl := range f.Entries {
		bib, ok := decl.(*ast.BibDecl)
		if !ok {
			continue
		}
		e := &sanEntry{entryType: bib.Type, key: bib.Key.Name}
		for _, tag := range bib.Tags {
			e.tags = append(e.tags, sanTag{name: strings.ToLower(tag.Name), value: exprValue(tag.Value)})
		}
		sanitizeEntry(e, snap, policy, report)
		entries = append(entries, e)
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "@%s{%s,\n", e.entryType, e.key)
		for _, t := range e.tags {
			fmt.Fprintf(&b, "  %s = {%s},\n", t.name, t.value)
		}
		b.WriteString("}\n")
	}

	slog.Info("sanitize.done",
		"entries", len(entries),
		"defects", len(report.Findings),
		"needs_review", len(report.NeedsReview))
	return b.String(), report, nil
}

// sanitizeEntry applies the rule table to one entry in place.
func sanitizeEntry(e *sanEntry, snap *library.Snapshot, policy Policy, report *SanitizeReport) {
	title := e.get("title")
	rec := lookupRecord(e, snap)

	// Domain-as-title: a failed fetch left the site host where the title
	// belongs. Repair from the snapshot when it knows the real title.
	if policy.IsDomainTitle(title) {
		if rec != nil && rec.Title != "" && !policy.IsDomainTitle(rec.Title) && !policy.IsStubTitle(rec.Title) {
			e.set("title", escapeLaTeX(rec.Title))
			report.add(Finding{Key: e.key, Defect: DefectDomainTitle, Repaired: true, Hard: true,
				Detail: fmt.Sprintf("replaced %q with library title %q", title, rec.Title)})
		} else {
			report.add(Finding{Key: e.key, Defect: DefectMissingTitle, Hard: true,
				Detail: fmt.Sprintf("title is the bare domain %q and the library has no better title", title)})
		}
	} else if policy.IsStubTitle(title) {
		// Stub titles repair only when the snapshot carries a real title.
		if rec != nil && rec.Title != "" && !policy.IsStubTitle(rec.Title) && !policy.IsDomainTitle(rec.Title) {
			e.set("title", escapeLaTeX(rec.Title))
			report.add(Finding{Key: e.key, Defect: DefectStubTitle, Repaired: true, Hard: true,
				Detail: fmt.Sprintf("replaced stub %q with library title %q", title, rec.Title)})
		} else {
			report.add(Finding{Key: e.key, Defect: DefectStubTitle, Hard: true,
				Detail: fmt.Sprintf("stub title %q with no replacement in the library", title)})
		}
	}

	// Author rules.
	if authorField := e.get("author"); authorField != "" {
		authors := library.ParseAuthorList(authorField)
		changed := false
		for i, a := range authors {
			if IsSuspectAuthor(a.Family) {
				report.add(Finding{Key: e.key, Defect: DefectUnknownAuthor, Hard: true,
					Detail: fmt.Sprintf("author %d is %q", i+1, a.Family)})
			}
			if !a.Corporate && a.Given == "" && policy.IsOrgName(a.Family) {
				authors[i].Corporate = true
				changed = true
			}
		}
		if changed {
			e.set("author", joinAuthors(authors))
			report.add(Finding{Key: e.key, Defect: DefectOrgAuthor, Repaired: true,
				Detail: "rewrote organization author to corporate braces"})
		}
	}

	// arXiv URL without an eprint field.
	if e.get("eprint") == "" {
		if a, ok := ident.ExtractArxiv(e.get("url")); ok {
			e.set("eprint", a.String())
			if e.get("archiveprefix") == "" {
				e.set("archiveprefix", "arXiv")
			}
			report.add(Finding{Key: e.key, Defect: DefectMissingEprint, Repaired: true,
				Detail: fmt.Sprintf("added eprint %s from URL", a.String())})
		}
	}
}

// lookupRecord finds the snapshot record behind an entry through its
// identifier fields, strongest first.
func lookupRecord(e *sanEntry, snap *library.Snapshot) *library.Record {
	if snap == nil {
		return nil
	}
	if doi := ident.ExtractDOI("doi:" + e.get("doi")); doi != "" {
		if rec, ok := snap.LookupDOI(doi); ok {
			return rec
		}
	}
	if isbn := ident.CanonicalISBN(e.get("isbn")); isbn != "" {
		if rec, ok := snap.LookupISBN(isbn); ok {
			return rec
		}
	}
	if a, ok := ident.ExtractArxiv("arXiv:" + e.get("eprint")); ok {
		if rec, found := snap.LookupArxiv(a.ID); found {
			return rec
		}
	}
	if u := ident.NormalizeURL(e.get("url")); u != "" {
		if rec, ok := snap.LookupURL(u); ok {
			return rec
		}
	}
	return nil
}

// joinAuthors renders an author list back to field text without
// re-escaping the parts (they come from already-escaped field text).
func joinAuthors(authors []library.Author) string {
	parts := make([]string, 0, len(authors))
	for _, a := range authors {
		switch {
		case a.Corporate:
			parts = append(parts, "{{"+a.Family+"}}")
		case a.Given != "":
			parts = append(parts, a.Family+", "+a.Given)
		default:
			parts = append(parts, a.Family)
		}
	}
	return strings.Join(parts, " and ")
}

// exprValue flattens a tag value expression to its raw text.
func exprValue(x ast.Expr) string {
	switch v := x.(type) {
	case *ast.UnparsedText:
		return v.Value
	case *ast.ConcatExpr:
		return exprValue(v.X) + exprValue(v.Y)
	case *ast.Ident:
		return v.Name
	default:
		return ""
	}
}
