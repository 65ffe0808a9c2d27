// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import "sync"

// UnauthorizedNotifier holds at most one handler invoked when the
// backend rejects the session. The last SetHandler wins; Notify without
// a handler does nothing.
type UnauthorizedNotifier struct {
	mu      sync.Mutex
	handler func()
}

// NewUnauthorizedNotifier returns a notifier with no handler.
func NewUnauthorizedNotifier() *UnauthorizedNotifier {
	return &UnauthorizedNotifier{}
}

// SetHandler replaces the handler. A nil handler clears it.
func (n *UnauthorizedNotifier) SetHandler(handler func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handler = handler
}

// Notify invokes the current handler, if any, on the calling
// goroutine. The handler runs outside the notifier's lock so it may
// call SetHandler.
func (n *UnauthorizedNotifier) Notify() {
	n.mu.Lock()
	handler := n.handler
	n.mu.Unlock()
	if handler != nil {
		handler()
	}
}
