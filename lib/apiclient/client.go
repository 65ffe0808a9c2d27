// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bureau-foundation/timeoff/lib/netutil"
	"github.com/bureau-foundation/timeoff/lib/session"
)

// DefaultTimeout bounds each request when Config.Timeout is zero.
const DefaultTimeout = 15 * time.Second

// TokenStore is the part of the session store the transport uses.
type TokenStore interface {
	Get(ctx context.Context) (*session.Session, error)
	Clear(ctx context.Context) error
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://timeoff.example/api.
	BaseURL string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	// Store supplies the bearer token and is cleared on 401. Required.
	Store TokenStore

	// Notifier is fired after the store is cleared on 401. Required.
	Notifier *UnauthorizedNotifier

	// Transport is the underlying round tripper. If nil,
	// http.DefaultTransport is used.
	Transport http.RoundTripper

	// Instrument wraps the transport with OpenTelemetry client spans.
	Instrument bool

	// Logger receives per-request diagnostics. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Client calls the time-off backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      TokenStore
	notifier   *UnauthorizedNotifier
	logger     *slog.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: BaseURL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parsing BaseURL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: BaseURL must be http or https, got %q", cfg.BaseURL)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("apiclient: Store is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("apiclient: Notifier is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.Instrument {
		transport = otelhttp.NewTransport(transport)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		store:      cfg.Store,
		notifier:   cfg.Notifier,
		logger:     logger.With("component", "apiclient"),
	}, nil
}

// do sends one request. body (if non-nil) is JSON-encoded; out (if
// non-nil) receives the decoded 2xx body. A 401 clears the store and
// fires the notifier before the error is returned.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	// A store read failure sends the request unauthenticated; the
	// backend's 401 then drives the usual teardown.
	if current, err := c.store.Get(ctx); err != nil {
		c.logger.Warn("reading session for request", "error", err)
	} else if current != nil && current.AccessToken != "" {
		request.Header.Set("Authorization", "Bearer "+current.AccessToken)
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"duration", time.Since(started),
		"request_id", request.Header.Get("X-Request-ID"),
	)

	if response.StatusCode == http.StatusUnauthorized {
		apiError := &APIError{
			StatusCode: response.StatusCode,
			Method:     method,
			Path:       path,
			Message:    netutil.ErrorMessage(response.Body),
		}
		c.rejectSession(ctx)
		return apiError
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return &APIError{
			StatusCode: response.StatusCode,
			Method:     method,
			Path:       path,
			Message:    netutil.ErrorMessage(response.Body),
		}
	}

	if out == nil {
		return nil
	}
	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return fmt.Errorf("%s %s: reading response body: %w", method, path, err)
	}
	// 201/204 without a body leaves out untouched.
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decoding response body: %w", method, path, err)
	}
	return nil
}

// rejectSession clears the persisted session and fires the notifier.
// The clear uses a detached context so a cancelled request still
// removes the rejected token.
func (c *Client) rejectSession(ctx context.Context) {
	clearContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.store.Clear(clearContext); err != nil {
		c.logger.Error("clearing rejected session", "error", err)
	}
	c.logger.Info("backend rejected session")
	c.notifier.Notify()
}
