// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package securestore persists the single authenticated session slot.
//
// [File] keeps the slot as an age-sealed JSON document on the local
// filesystem. Every operation holds an exclusive flock on the store
// directory for its whole duration and releases it on every exit path,
// so concurrent processes (the CLI and a running TUI) never interleave
// a read with a half-written replacement. Writes go through a
// temporary file that is synced and renamed into place.
//
// Get never surfaces corrupt content as an error: a slot that cannot be
// decrypted, parsed, or that lacks an access token is logged and
// reported as absent. Only genuine I/O failures are returned.
//
// [Memory] implements the same contract in process memory for tests
// and ephemeral runs.
package securestore
