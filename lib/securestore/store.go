// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package securestore

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/timeoff/lib/session"
)

// ErrInvalidSession is returned by Set for a session that must not be
// persisted.
var ErrInvalidSession = errors.New("securestore: refusing to persist an invalid session")

// Store is the persisted session slot. Get returns (nil, nil) when the
// slot is empty or its content is unusable.
type Store interface {
	Get(ctx context.Context) (*session.Session, error)
	Set(ctx context.Context, value session.Session) error
	Clear(ctx context.Context) error
}

// slotVersion is bumped whenever the persisted layout changes, so an
// older layout is never decoded as the current one.
const slotVersion = "session-v2"

// SlotName returns the slot identifier for an identity-provider
// registration. Different client/tenant pairs never share a slot.
func SlotName(clientID, tenantID string) string {
	digest := blake3.Sum256([]byte(clientID + "|" + tenantID))
	return slotVersion + "-" + hex.EncodeToString(digest[:8])
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.Mutex
	value *session.Session
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Get(ctx context.Context) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == nil {
		return nil, nil
	}
	copied := *m.value
	return &copied, nil
}

func (m *Memory) Set(ctx context.Context, value session.Session) error {
	if err := value.Validate(); err != nil {
		return errors.Join(ErrInvalidSession, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = &value
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = nil
	return nil
}
