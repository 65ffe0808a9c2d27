// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconciler keeps a local request list in step with the
// backend, applying edits optimistically.
//
// Remove and Update change the local list before the remote call and,
// if the call fails, restore the entire list as it was immediately
// before the edit (not just the touched row) and record the error.
// Remove swallows its error after recording it; Update also returns it
// so a form can stay open. Create waits for the server and appends the
// stored record.
//
// Load replaces the list wholesale. Overlapping loads are not
// sequenced: whichever response arrives last wins.
//
// The kind of a record, which selects the remote endpoint, is read
// from the list before the local mutation.
package reconciler
