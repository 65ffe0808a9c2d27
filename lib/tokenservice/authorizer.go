// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tokenservice

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// AuthorizationRequest is what an Authorizer needs to obtain consent.
type AuthorizationRequest struct {
	// State is the anti-forgery value the redirect must echo back.
	State string

	// URL builds the provider's authorization URL for the redirect URL
	// the Authorizer will listen on.
	URL func(redirectURL string) string
}

// Grant is the outcome of a successful authorization.
type Grant struct {
	Code        string
	RedirectURL string
}

// Authorizer obtains an authorization code from the user. It returns
// ErrCancelled when the user declines or abandons the flow.
type Authorizer interface {
	Authorize(ctx context.Context, request AuthorizationRequest) (Grant, error)
}

// LoopbackAuthorizer receives the redirect on a local HTTP listener,
// the flow native applications use with the Microsoft identity
// platform.
type LoopbackAuthorizer struct {
	// Port to listen on at 127.0.0.1. Zero picks a free port; the
	// application registration must then allow any localhost port.
	Port int

	// Present shows the authorization URL to the user (print it,
	// open a browser). Required.
	Present func(authURL string) error

	Logger *slog.Logger
}

type callbackResult struct {
	grant Grant
	err   error
}

// Authorize listens for the redirect until a matching callback arrives
// or ctx is done. Callbacks with a foreign state are rejected and
// ignored.
func (a *LoopbackAuthorizer) Authorize(ctx context.Context, request AuthorizationRequest) (Grant, error) {
	if a.Present == nil {
		return Grant{}, fmt.Errorf("loopback authorizer: Present is required")
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(a.Port)))
	if err != nil {
		return Grant{}, fmt.Errorf("loopback authorizer: listening: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://localhost:%d/callback", port)

	results := make(chan callbackResult, 1)
	deliver := func(result callbackResult) {
		select {
		case results <- result:
		default:
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != request.State {
			logger.Warn("ignoring authorization callback with unexpected state")
			http.Error(w, "unexpected state", http.StatusBadRequest)
			return
		}
		if code := query.Get("error"); code != "" {
			description := query.Get("error_description")
			writePage(w, "Sign-in was not completed. You can close this window.")
			if code == "access_denied" {
				deliver(callbackResult{err: ErrCancelled})
				return
			}
			deliver(callbackResult{err: fmt.Errorf("provider returned %s: %s", code, description)})
			return
		}
		code := query.Get("code")
		if code == "" {
			writePage(w, "Sign-in was not completed. You can close this window.")
			deliver(callbackResult{err: ErrCancelled})
			return
		}
		writePage(w, "Signed in. You can close this window and return to the terminal.")
		deliver(callbackResult{grant: Grant{Code: code, RedirectURL: redirectURL}})
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go server.Serve(listener)
	defer func() {
		shutdownContext, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownContext)
	}()

	if err := a.Present(request.URL(redirectURL)); err != nil {
		return Grant{}, fmt.Errorf("loopback authorizer: presenting URL: %w", err)
	}
	logger.Info("waiting for authorization redirect", "redirect_url", redirectURL)

	select {
	case result := <-results:
		return result.grant, result.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Grant{}, fmt.Errorf("loopback authorizer: timed out waiting for redirect: %w", ErrCancelled)
		}
		return Grant{}, ErrCancelled
	}
}

func writePage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!doctype html><title>timeoff</title><p>%s</p>\n", html.EscapeString(message))
}
