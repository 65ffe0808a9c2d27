// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package authstate

import "github.com/bureau-foundation/timeoff/lib/session"

// State is the controller's lifecycle state.
type State int

const (
	// StateInitializing is the state before Start has resolved the
	// persisted session.
	StateInitializing State = iota

	// StateUnauthenticated means no session is held.
	StateUnauthenticated

	// StateRefreshing means Start found an expired session and is
	// exchanging its refresh token.
	StateRefreshing

	// StateAuthenticatedProfileLoading means a session is held and
	// the user profile for its access token is being fetched.
	StateAuthenticatedProfileLoading

	// StateAuthenticatedReady means a session is held and the profile
	// fetch has finished. The user may still be nil if it failed.
	StateAuthenticatedReady
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateRefreshing:
		return "refreshing"
	case StateAuthenticatedProfileLoading:
		return "profile-loading"
	case StateAuthenticatedReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Settled reports whether the state is final enough for navigation
// decisions.
func (s State) Settled() bool {
	return s == StateUnauthenticated || s == StateAuthenticatedReady
}

// Snapshot is a copy of the controller state at one transition.
type Snapshot struct {
	State State

	// Session is nil when unauthenticated.
	Session *session.Session

	// User is nil when unauthenticated, while the profile loads, and
	// after a failed profile fetch.
	User *session.User

	// Generation increases on every adoption and teardown.
	Generation uint64
}

// Authenticated reports whether a session is held.
func (s Snapshot) Authenticated() bool { return s.Session != nil }

// NoticeKind classifies a user-visible notice.
type NoticeKind int

const (
	// NoticeSessionExpired follows a failed scheduled refresh.
	NoticeSessionExpired NoticeKind = iota + 1

	// NoticeUnauthorized follows a 401 from the backend.
	NoticeUnauthorized
)

const (
	messageSessionExpired = "session expired, please sign in again"
	messageUnauthorized   = "signed out by the server, please sign in again"
)

// Notice is a message for the user about a forced sign-out.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// NoticeFunc receives notices. It is called outside the controller's
// locks and may block briefly.
type NoticeFunc func(Notice)
