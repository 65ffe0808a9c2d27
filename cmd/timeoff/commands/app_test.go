// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/timeoff/lib/config"
	"github.com/bureau-foundation/timeoff/lib/securestore"
	"github.com/bureau-foundation/timeoff/lib/session"
	"github.com/bureau-foundation/timeoff/lib/tokenservice"
)

// syncBuffer is a bytes.Buffer safe for the controller's background
// goroutines to write while the test reads.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

type fakeTokens struct {
	signIn    *session.Session
	signInErr error
}

func (f *fakeTokens) SignIn(ctx context.Context) (*session.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.signIn, nil
}

func (f *fakeTokens) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	return nil, tokenservice.ErrCancelled
}

// seen is one request the fake backend received.
type seen struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type backend struct {
	*httptest.Server

	mu      sync.Mutex
	seen    []seen
	handler routeFunc
}

// routeFunc handles a request the test cares about and reports whether
// it did.
type routeFunc func(w http.ResponseWriter, r *http.Request) bool

const profileJSON = `{"idUtente": 7, "nome": "Mario", "cognome": "Rossi", "email": "mario.rossi@example.com", "ruolo": "admin"}`

const sentJSON = `[
	{"idRichiesta": 11, "id_utente": 7, "dataInizio": "2026-03-02T09:00:00", "dataFine": "2026-03-02T18:00:00", "StatoApprovazione": "approvato", "tipo_richiesta": "ferie"},
	{"idRichiesta": 12, "id_utente": 7, "dataInizio": "2026-03-05T09:00:00", "dataFine": "2026-03-05T11:00:00", "StatoApprovazione": "in attesa", "tipo_richiesta": "permesso", "tipo_permesso": "rol"}
]`

const receivedJSON = `[
	{"idRichiesta": 42, "id_utente": 9, "dataInizio": "2026-03-09T09:00:00", "dataFine": "2026-03-10T18:00:00", "StatoApprovazione": "pending", "tipo_richiesta": "holiday"}
]`

// newBackend serves the profile and both lists. extra sees every
// request first.
func newBackend(t *testing.T, extra routeFunc) *backend {
	t.Helper()
	b := &backend{handler: extra}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.seen = append(b.seen, seen{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		b.mu.Unlock()

		if b.handler != nil && b.handler(w, r) {
			return
		}
		switch r.URL.Path {
		case "/api/Auth/microsoft-login":
			writeJSON(w, http.StatusOK, profileJSON)
		case "/api/requests/sent":
			writeJSON(w, http.StatusOK, sentJSON)
		case "/api/requests/received":
			writeJSON(w, http.StatusOK, receivedJSON)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(b.Close)
	return b
}

// find returns the last request with the given method and path.
func (b *backend) find(method, path string) (seen, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for index := len(b.seen) - 1; index >= 0; index-- {
		if b.seen[index].Method == method && b.seen[index].Path == path {
			return b.seen[index], true
		}
	}
	return seen{}, false
}

// count returns how many requests had the given method and path.
func (b *backend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, request := range b.seen {
		if request.Method == method && request.Path == path {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

type testApp struct {
	*app
	store  *securestore.Memory
	out    *syncBuffer
	errOut *syncBuffer
}

// newTestApp assembles an app against b. A non-nil stored session is
// persisted before the controller starts.
func newTestApp(t *testing.T, b *backend, stored *session.Session, tokens *fakeTokens) *testApp {
	t.Helper()
	cfg := config.Default()
	cfg.Identity.ClientID = "client"
	cfg.Identity.TenantID = "tenant"
	cfg.API.BaseURL = b.URL + "/api"
	cfg.Store.Directory = t.TempDir()

	store := securestore.NewMemory()
	if stored != nil {
		if err := store.Set(context.Background(), *stored); err != nil {
			t.Fatal(err)
		}
	}
	if tokens == nil {
		tokens = &fakeTokens{}
	}
	out, errOut := &syncBuffer{}, &syncBuffer{}
	a, err := assemble(appParts{
		Config: cfg,
		Store:  store,
		Tokens: tokens,
		Out:    out,
		ErrOut: errOut,
	}, false)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	t.Cleanup(a.Close)
	return &testApp{app: a, store: store, out: out, errOut: errOut}
}

func signedIn() *session.Session {
	return &session.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
	}
}

func storedSession(t *testing.T, store securestore.Store) *session.Session {
	t.Helper()
	stored, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	return stored
}
