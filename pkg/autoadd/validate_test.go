// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/ident"
	"github.com/kraklabs/mdtex/pkg/library"
)

func TestEntryValidator(t *testing.T) {
	occ := citation.Occurrence{
		Text:   "Fletcher (2016)",
		RawURL: "https://example.org/paper",
	}
	v := NewEntryValidator()

	tests := []struct {
		name    string
		rec     *library.Record
		wantErr bool
	}{
		{
			"valid record",
			&library.Record{
				Type: "misc", Title: "A Real Title", Year: "2016",
				URL:     "https://example.org/paper",
				Authors: []library.Author{{Family: "Fletcher", Given: "Kate"}},
			},
			false,
		},
		{
			"empty title",
			&library.Record{Type: "misc", Title: ""},
			true,
		},
		{
			"title equals link display text",
			&library.Record{Type: "misc", Title: "Fletcher (2016)"},
			true,
		},
		{
			"stub title",
			&library.Record{Type: "misc", Title: "Web page by Example"},
			true,
		},
		{
			"untitled",
			&library.Record{Type: "misc", Title: "Untitled"},
			true,
		},
		{
			"bare domain title",
			&library.Record{Type: "misc", Title: "amazon.de"},
			true,
		},
		{
			"placeholder author",
			&library.Record{
				Type: "misc", Title: "Fine Title",
				Authors: []library.Author{{Family: "Unknown"}},
			},
			true,
		},
		{
			"corporate author preserved whole",
			&library.Record{
				Type: "misc", Title: "Ecodesign Regulations",
				Authors: []library.Author{{Family: "European Commission", Corporate: true}},
			},
			false,
		},
		{
			"arxiv without url",
			&library.Record{
				Type: "misc", Title: "Fine Title",
				Arxiv: ident.ArxivID{ID: "2401.12345"},
			},
			true,
		},
		{
			"arxiv with url",
			&library.Record{
				Type: "misc", Title: "Fine Title",
				Arxiv: ident.ArxivID{ID: "2401.12345"},
				URL:   "https://arxiv.org/abs/2401.12345",
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.rec, occ)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
