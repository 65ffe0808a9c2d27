// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the timeoff command tree.
//
// Every command that talks to the backend opens an app: the loaded
// config, the session store, the token service, the API client and the
// session controller, wired the same way for the CLI and the terminal
// UI. Command logic lives in run functions that take the app, so tests
// drive them against an httptest backend and a memory store.
package commands
