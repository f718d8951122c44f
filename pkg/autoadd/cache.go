// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package autoadd

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/kraklabs/mdtex/pkg/library"
)

// Cache stores fetched metadata keyed by canonical identifier so repeated
// runs (and repeated citations of the same work) do not refetch. Entries
// outlive a single pipeline run; the canonical keys (doi:, arxiv:, url:)
// make them safe to share across runs and documents.
type Cache struct {
	path string

	mu      sync.Mutex
	entries map[string]*library.Record
	dirty   bool
}

// OpenCache loads the cache file at path, creating an empty cache when
// the file does not exist yet. A corrupt cache file is discarded rather
// than aborting the run.
func OpenCache(path string) *Cache {
	c := &Cache{path: path, entries: make(map[string]*library.Record)}

	raw, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(raw, &c.entries); err != nil {
		slog.Warn("autoadd.cache.corrupt", "path", path, "err", err)
		c.entries = make(map[string]*library.Record)
	}
	return c
}

// Get returns the cached record for the canonical identifier.
func (c *Cache) Get(key string) (*library.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[key]
	return rec, ok
}

// Put stores a record under the canonical identifier.
func (c *Cache) Put(key string, rec *library.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = rec
	c.dirty = true
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Save persists the cache when it changed since load.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

// DefaultCachePath returns the per-user cache location.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mdtex", "metadata.json")
}
