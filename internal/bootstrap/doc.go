// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package bootstrap prepares the run workspace before any pipeline phase
// runs: it creates the output directory (and the debug directory when
// requested) and checks the output directory is writable. The quarantine
// directory is only named here; it is not created or probed.
package bootstrap
