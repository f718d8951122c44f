// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package citation

import (
	"fmt"
	"log/slog"
	"sort"
)

// DefaultSurface is the citation command used when no override is
// configured.
const DefaultSurface = `\citep`

// Replace rewrites the Markdown source, splicing a citation command over
// the span of every occurrence that has a bound key.
//
// keys maps occurrence index (into occs) to the emitted BibTeX key.
// Occurrences without an entry in keys are left intact; the orchestrator
// decides whether unresolved occurrences are fatal. The returned count is
// the number of replacements performed and must equal len(keys); a
// discrepancy means the spans no longer match the source and is returned
// as an error rather than silently producing a corrupt document.
func Replace(src []byte, occs []Occurrence, keys map[int]string, surface string) ([]byte, int, error) {
	if surface == "" {
		surface = DefaultSurface
	}

	// Replace back-to-front so earlier spans stay valid.
	indices := make([]int, 0, len(keys))
	for i := range keys {
		if i < 0 || i >= len(occs) {
			return nil, 0, fmt.Errorf("binding refers to occurrence %d of %d", i, len(occs))
		}
		indices = append(indices, i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(indices)))

	out := make([]byte, len(src))
	copy(out, src)
	replaced := 0

	for _, i := range indices {
		occ := occs[i]
		key := keys[i]
		if occ.Start < 0 || occ.End > len(out) || occ.Start >= occ.End {
			return nil, 0, fmt.Errorf("occurrence %d span %d-%d out of bounds", i, occ.Start, occ.End)
		}
		if out[occ.Start] != '[' {
			return nil, 0, fmt.Errorf("occurrence %d span no longer anchors a link at byte %d", i, occ.Start)
		}

		cmd := []byte(fmt.Sprintf("%s{%s}", surface, key))
		out = append(out[:occ.Start], append(cmd, out[occ.End:]...)...)
		replaced++
		slog.Debug("replace.bound", "text", occ.Text, "key", key, "span", occ.Position())
	}

	if replaced != len(keys) {
		return nil, replaced, fmt.Errorf("replaced %d spans but %d bindings were given", replaced, len(keys))
	}
	slog.Info("replace.done", "replaced", replaced, "total_occurrences", len(occs))
	return out, replaced, nil
}
