// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/timeoff/lib/apiclient"
	"github.com/bureau-foundation/timeoff/lib/requests"
)

// Fallback messages when the server gives none.
const (
	MessageLoadFailed   = "failed to load requests"
	MessageDeleteFailed = "failed to delete request"
	MessageUpdateFailed = "failed to update request"
	MessageCreateFailed = "failed to submit request"
	MessageNotFound     = "request not found"
)

// ErrNotFound is returned by Update for an id the list does not hold.
var ErrNotFound = errors.New(MessageNotFound)

// RemoteStore is the backend the list reconciles against.
// *apiclient.Client implements it.
type RemoteStore interface {
	ListRequests(ctx context.Context, list requests.ListKey, day time.Time) ([]requests.Record, error)
	CreateRequest(ctx context.Context, draft requests.Record) (requests.Record, error)
	UpdateRequest(ctx context.Context, record requests.Record) error
	DeleteRequest(ctx context.Context, kind requests.Kind, id int64) error
}

// State is a point-in-time view of a List.
type State struct {
	Items   []requests.Record
	Loading bool
	Err     string
}

// Config configures a List.
type Config struct {
	Remote RemoteStore
	Key    requests.ListKey

	// Logger receives the underlying cause of failures whose
	// user-facing message is a generic fallback. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// List is one reconciled request list. Safe for concurrent use; no
// remote call is made while the list's lock is held.
type List struct {
	remote RemoteStore
	key    requests.ListKey
	logger *slog.Logger

	mu        sync.Mutex
	items     []requests.Record
	inFlight  int
	err       string
	day       time.Time
	listeners map[int]func(State)
	nextID    int
}

// New returns an empty List.
func New(cfg Config) (*List, error) {
	if cfg.Remote == nil {
		return nil, fmt.Errorf("reconciler: Remote is required")
	}
	if err := cfg.Key.Validate(); err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &List{
		remote:    cfg.Remote,
		key:       cfg.Key,
		logger:    logger.With("component", "reconciler", "list", string(cfg.Key)),
		items:     []requests.Record{},
		listeners: make(map[int]func(State)),
	}, nil
}

// Key returns the list this reconciler serves.
func (l *List) Key() requests.ListKey { return l.key }

// SetDay narrows subsequent loads to requests overlapping day. The zero
// time removes the filter.
func (l *List) SetDay(day time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.day = day
}

// Items returns a copy of the current list.
func (l *List) Items() []requests.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// Loading reports whether a Load is in flight.
func (l *List) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight > 0
}

// Err returns the message of the last failed operation, or "" when
// the last operation succeeded.
func (l *List) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Find returns the record with the given id.
func (l *List) Find(id int64) (requests.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	index := l.indexLocked(id)
	if index < 0 {
		return requests.Record{}, false
	}
	return l.items[index], true
}

// Snapshot returns the full state.
func (l *List) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

// Subscribe registers listener for state changes. Listeners run on the
// goroutine that caused the change, outside the list's lock. The
// returned function unregisters.
func (l *List) Subscribe(listener func(State)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = listener
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Load fetches the list and replaces the local copy. On failure the
// local copy is kept and the error recorded.
func (l *List) Load(ctx context.Context) {
	l.mu.Lock()
	l.inFlight++
	l.err = ""
	day := l.day
	l.publishLocked()

	records, err := l.remote.ListRequests(ctx, l.key, day)

	l.mu.Lock()
	l.inFlight--
	if err != nil {
		l.err = l.describe(err, MessageLoadFailed)
	} else {
		l.items = records
	}
	l.publishLocked()
}

// Remove deletes the record optimistically. A failure restores the
// list as it was before the call and is recorded, not returned.
func (l *List) Remove(ctx context.Context, id int64) {
	l.mu.Lock()
	index := l.indexLocked(id)
	if index < 0 {
		l.err = MessageNotFound
		l.publishLocked()
		return
	}
	kind := l.items[index].Kind
	previous := l.items
	l.items = slices.DeleteFunc(slices.Clone(previous), func(r requests.Record) bool { return r.ID == id })
	l.err = ""
	l.publishLocked()

	if err := l.remote.DeleteRequest(ctx, kind, id); err != nil {
		l.mu.Lock()
		l.items = previous
		l.err = l.describe(err, MessageDeleteFailed)
		l.publishLocked()
	}
}

// Update applies the patch optimistically. A failure restores the list
// as it was before the call, is recorded, and is returned.
func (l *List) Update(ctx context.Context, patch requests.Patch) error {
	if err := patch.Validate(); err != nil {
		l.mu.Lock()
		l.err = err.Error()
		l.publishLocked()
		return err
	}

	l.mu.Lock()
	index := l.indexLocked(patch.ID)
	if index < 0 {
		l.err = MessageNotFound
		l.publishLocked()
		return fmt.Errorf("reconciler: %w: %d", ErrNotFound, patch.ID)
	}
	previous := l.items
	updated := patch.Apply(previous[index])
	next := slices.Clone(previous)
	next[index] = updated
	l.items = next
	l.err = ""
	l.publishLocked()

	if err := l.remote.UpdateRequest(ctx, updated); err != nil {
		l.mu.Lock()
		l.items = previous
		l.err = l.describe(err, MessageUpdateFailed)
		l.publishLocked()
		return err
	}
	return nil
}

// Create submits a draft and appends the stored record. Not
// optimistic: nothing is shown until the server assigns an id.
func (l *List) Create(ctx context.Context, draft requests.Record) (requests.Record, error) {
	l.mu.Lock()
	l.err = ""
	l.publishLocked()

	created, err := l.remote.CreateRequest(ctx, draft)

	l.mu.Lock()
	if err != nil {
		l.err = l.describe(err, MessageCreateFailed)
		l.publishLocked()
		return requests.Record{}, err
	}
	l.items = append(slices.Clone(l.items), created)
	l.publishLocked()
	return created, nil
}

func (l *List) indexLocked(id int64) int {
	return slices.IndexFunc(l.items, func(r requests.Record) bool { return r.ID == id })
}

func (l *List) stateLocked() State {
	return State{
		Items:   slices.Clone(l.items),
		Loading: l.inFlight > 0,
		Err:     l.err,
	}
}

// publishLocked snapshots the state, releases the lock, and delivers
// the snapshot to every listener. Must be called with l.mu held; it
// returns with l.mu released.
func (l *List) publishLocked() {
	state := l.stateLocked()
	listeners := make([]func(State), 0, len(l.listeners))
	for _, listener := range l.listeners {
		listeners = append(listeners, listener)
	}
	l.mu.Unlock()
	for _, listener := range listeners {
		listener(state)
	}
}

// describe picks the user-facing message for err: the server's own
// message when it sent one, else fallback.
func (l *List) describe(err error, fallback string) string {
	if message := apiclient.ServerMessage(err); message != "" {
		return message
	}
	var invalid *requests.ValidationError
	if errors.As(err, &invalid) {
		return invalid.Message
	}
	l.logger.Warn(fallback, "error", err)
	return fallback
}
