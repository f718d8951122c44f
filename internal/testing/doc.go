// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testing provides shared fixtures for mdtex tests: a small
// reference library in both RDF and BibTeX form, a sample manuscript
// citing it, and helpers that write them into temporary directories.
//
// The fixtures are deliberately the same bibliography across formats so
// loader-equivalence and end-to-end tests can reuse them.
package testing
