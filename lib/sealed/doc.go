// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for data persisted on the local
// machine. It wraps filippo.io/age with the two operations the session
// store needs: obtain the machine-local X25519 identity (creating it on
// first use), and seal/open a payload to that identity.
//
// Sealed payloads are ASCII-armored so a slot file is inspectable with
// the age command line tool given the identity file.
//
// The identity file is written with mode 0600 inside a directory the
// caller created with 0700. It is the only key material; losing it makes
// every sealed slot unreadable, which the store treats as "no session".
package sealed
