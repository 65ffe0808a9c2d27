// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package requests defines time-off and overtime request records, their
// wire encoding, and the rules for building a new request from form
// input.
//
// A [Record] carries its [Kind] from the moment it is decoded or built;
// the kind decides which remote endpoint owns the record and which
// variant fields (permit type, medical certificate) are meaningful. It
// is never re-inferred from field presence after decode.
//
// The backend speaks snake_case Italian field names and local
// wall-clock timestamps without a zone. Incoming records tolerate the
// camelCase and PascalCase spellings some endpoints emit.
package requests
