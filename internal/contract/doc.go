// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package contract holds the input validation limits shared by the CLI
// commands: how large a manuscript may be and what obviously-binary
// input looks like. The limits are environment-tunable so CI setups with
// unusual manuscripts can widen them without a rebuild.
package contract
