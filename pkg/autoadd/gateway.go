// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package autoadd is the policy-gated side channel that fetches metadata
// for citations the matcher could not resolve and, when allowed, persists
// them to the user's reference library.
//
// The gateway never runs unless the matcher missed, and it never fabricates
// metadata: a failed fetch yields no record, and every candidate passes the
// EntryValidator before it may touch the library. The library write path is
// serialized through a single writer.
package autoadd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kraklabs/mdtex/internal/ui"
	"github.com/kraklabs/mdtex/pkg/citation"
	"github.com/kraklabs/mdtex/pkg/library"
)

// Policy selects the gateway behaviour.
type Policy string

const (
	// PolicyDisabled never attempts network I/O.
	PolicyDisabled Policy = "disabled"
	// PolicyDryRun resolves metadata and records what would be added
	// without mutating the library.
	PolicyDryRun Policy = "dry-run"
	// PolicyReal resolves metadata and inserts validated records into
	// the user's library.
	PolicyReal Policy = "real"
)

// ParsePolicy validates a CLI policy string.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyDisabled, PolicyDryRun, PolicyReal:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown auto-add policy %q (want disabled, dry-run, or real)", s)
	}
}

// PlanItem records one dry-run decision for the report.
type PlanItem struct {
	OccurrenceText string `json:"occurrence_text"`
	URL            string `json:"url"`
	Resolver       string `json:"resolver,omitempty"`
	Title          string `json:"title,omitempty"`
	Outcome        string `json:"outcome"` // would-add, fetch-failed, rejected, added
	Detail         string `json:"detail,omitempty"`
}

// LibraryWriter persists a validated record to the user's library.
// Implementations must be safe for serialized (not concurrent) use; the
// gateway holds a lock across Add calls.
type LibraryWriter interface {
	Add(ctx context.Context, rec *library.Record) error
}

// Config bounds the gateway's external I/O.
type Config struct {
	Policy Policy

	// PerCallTimeout bounds each external fetch.
	PerCallTimeout time.Duration

	// TotalBudget bounds the whole auto-add phase; occurrences not
	// reached within the budget stay unmatched.
	TotalBudget time.Duration

	// MaxAttempts bounds retries per fetch (see backoff in resolvers).
	MaxAttempts uint
}

// DefaultConfig returns the standard bounds.
func DefaultConfig(policy Policy) Config {
	return Config{
		Policy:         policy,
		PerCallTimeout: 20 * time.Second,
		TotalBudget:    5 * time.Minute,
		MaxAttempts:    4,
	}
}

// Gateway fetches missing references according to policy.
type Gateway struct {
	cfg       Config
	resolvers []Resolver
	validator *EntryValidator
	writer    LibraryWriter
	cache     *Cache

	mu   sync.Mutex // serializes library writes
	plan []PlanItem
}

// New creates a Gateway. writer may be nil for disabled/dry-run policies;
// cache may be nil to bypass caching.
func New(cfg Config, resolvers []Resolver, writer LibraryWriter, cache *Cache) *Gateway {
	return &Gateway{
		cfg:       cfg,
		resolvers: resolvers,
		validator: NewEntryValidator(),
		writer:    writer,
		cache:     cache,
	}
}

// Plan returns the decisions recorded so far.
func (g *Gateway) Plan() []PlanItem {
	return g.plan
}

// TryAdd attempts to resolve metadata for one missed occurrence.
//
// Returns the fetched record when the occurrence could be resolved and
// validated (and, under PolicyReal, persisted), or nil when the policy
// forbids fetching, no resolver applies, the fetch fails, or validation
// rejects the candidate. Failures are local to the occurrence.
func (g *Gateway) TryAdd(ctx context.Context, occ citation.Occurrence) (*library.Record, error) {
	if g.cfg.Policy == PolicyDisabled {
		return nil, nil
	}

	resolver := g.pick(occ)
	if resolver == nil {
		g.record(PlanItem{OccurrenceText: occ.Text, URL: occ.RawURL,
			Outcome: "fetch-failed", Detail: "no resolver for this URL shape"})
		return nil, nil
	}

	cacheKey := resolver.CacheKey(occ)
	if g.cache != nil && cacheKey != "" {
		if rec, ok := g.cache.Get(cacheKey); ok {
			slog.Debug("autoadd.cache.hit", "key", cacheKey)
			return g.admit(ctx, occ, resolver.Name(), rec)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.PerCallTimeout)
	defer cancel()

	rec, err := resolver.Resolve(callCtx, occ)
	if err != nil {
		g.record(PlanItem{OccurrenceText: occ.Text, URL: occ.RawURL,
			Resolver: resolver.Name(), Outcome: "fetch-failed", Detail: err.Error()})
		slog.Warn("autoadd.fetch.failed", "text", occ.Text, "resolver", resolver.Name(), "err", err)
		return nil, nil
	}

	if g.cache != nil && cacheKey != "" && rec != nil {
		g.cache.Put(cacheKey, rec)
	}
	return g.admit(ctx, occ, resolver.Name(), rec)
}

// admit validates a fetched candidate and, under PolicyReal, persists it.
func (g *Gateway) admit(ctx context.Context, occ citation.Occurrence, resolverName string, rec *library.Record) (*library.Record, error) {
	if rec == nil {
		return nil, nil
	}
	if err := g.validator.Validate(rec, occ); err != nil {
		g.record(PlanItem{OccurrenceText: occ.Text, URL: occ.RawURL,
			Resolver: resolverName, Title: rec.Title, Outcome: "rejected", Detail: err.Error()})
		slog.Warn("autoadd.rejected", "text", occ.Text, "title", rec.Title, "err", err)
		return nil, nil
	}

	if g.cfg.Policy == PolicyDryRun {
		g.record(PlanItem{OccurrenceText: occ.Text, URL: occ.RawURL,
			Resolver: resolverName, Title: rec.Title, Outcome: "would-add"})
		return rec, nil
	}

	if g.writer != nil {
		g.mu.Lock()
		err := g.writer.Add(ctx, rec)
		g.mu.Unlock()
		if err != nil {
			// The fetched metadata is still usable for this run even
			// when persisting it failed; the library itself is never
			// left corrupted.
			g.record(PlanItem{OccurrenceText: occ.Text, URL: occ.RawURL,
				Resolver: resolverName, Title: rec.Title, Outcome: "added",
				Detail: fmt.Sprintf("library write failed: %v", err)})
			slog.Warn("autoadd.write.failed", "text", occ.Text, "err", err)
			return rec, nil
		}
	}
	g.record(PlanItem{OccurrenceText: occ.Text, URL: occ.RawURL,
		Resolver: resolverName, Title: rec.Title, Outcome: "added"})
	slog.Info("autoadd.added", "text", occ.Text, "title", rec.Title, "resolver", resolverName)
	return rec, nil
}

// AddBatch runs TryAdd over every missed occurrence under the total
// budget, showing a progress bar on a TTY. The returned map holds records
// for the occurrence indices that resolved.
func (g *Gateway) AddBatch(ctx context.Context, missed map[int]citation.Occurrence) map[int]*library.Record {
	resolved := make(map[int]*library.Record)
	if g.cfg.Policy == PolicyDisabled || len(missed) == 0 {
		return resolved
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.TotalBudget)
	defer cancel()

	var bar *progressbar.ProgressBar
	if ui.IsTerminal() {
		bar = progressbar.Default(int64(len(missed)), "auto-add")
	}

	// Source order keeps the run deterministic and the logs readable.
	for _, i := range sortedKeys(missed) {
		if ctx.Err() != nil {
			slog.Warn("autoadd.budget.exhausted", "remaining", len(missed)-len(resolved))
			break
		}
		rec, err := g.TryAdd(ctx, missed[i])
		if err == nil && rec != nil {
			resolved[i] = rec
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return resolved
}

// pick selects the resolver for the occurrence's identifier class.
func (g *Gateway) pick(occ citation.Occurrence) Resolver {
	for _, r := range g.resolvers {
		if r.Applies(occ) {
			return r
		}
	}
	return nil
}

func (g *Gateway) record(item PlanItem) {
	g.mu.Lock()
	g.plan = append(g.plan, item)
	g.mu.Unlock()
}

func sortedKeys(m map[int]citation.Occurrence) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// DefaultResolvers builds the standard resolver chain: DOI via CrossRef,
// arXiv via the arXiv API, anything else via webpage title extraction.
func DefaultResolvers(client HTTPDoer, maxAttempts uint) []Resolver {
	return []Resolver{
		NewCrossRefResolver(client, maxAttempts),
		NewArxivResolver(client, maxAttempts),
		NewWebpageResolver(client, maxAttempts),
	}
}
