// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
	"github.com/bureau-foundation/timeoff/lib/apiclient"
	"github.com/bureau-foundation/timeoff/lib/authstate"
	"github.com/bureau-foundation/timeoff/lib/clock"
	"github.com/bureau-foundation/timeoff/lib/config"
	"github.com/bureau-foundation/timeoff/lib/reconciler"
	"github.com/bureau-foundation/timeoff/lib/requests"
	"github.com/bureau-foundation/timeoff/lib/securestore"
	"github.com/bureau-foundation/timeoff/lib/telemetry"
	"github.com/bureau-foundation/timeoff/lib/tokenservice"
	"github.com/bureau-foundation/timeoff/lib/version"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

// appOptions are the flags shared by every command that opens an app.
type appOptions struct {
	ConfigPath string
	Ephemeral  bool
}

func (o *appOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.ConfigPath, "config", "", "config file (default: $"+config.EnvVar+")")
	flagSet.BoolVar(&o.Ephemeral, "ephemeral", false, "keep the session in memory only")
}

// app is one process's view of the backend and the session.
type app struct {
	config     *config.Config
	store      securestore.Store
	client     *apiclient.Client
	controller *authstate.Controller
	out        io.Writer
	errOut     io.Writer
	logger     *slog.Logger
	shutdown   telemetry.Shutdown

	presenter *urlPresenter

	noticeMu   sync.Mutex
	noticeSink func(authstate.Notice)
}

// appParts are the pieces assemble wires together. openApp builds them
// from the config file; tests supply fakes.
type appParts struct {
	Config    *config.Config
	Store     securestore.Store
	Tokens    authstate.TokenService
	Transport http.RoundTripper
	Clock     clock.Clock
	Out       io.Writer
	ErrOut    io.Writer
	Logger    *slog.Logger
}

// openApp loads the config and builds the production app.
func openApp(ctx context.Context, options appOptions, logger *slog.Logger) (*app, error) {
	cfg, err := loadConfig(options.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, cli.Internal("%w", err)
	}

	var store securestore.Store
	if options.Ephemeral {
		store = securestore.NewMemory()
	} else {
		file, err := securestore.OpenFile(securestore.FileConfig{
			Directory: cfg.Store.Directory,
			Slot:      securestore.SlotName(cfg.Identity.ClientID, cfg.Identity.TenantID),
			Logger:    logger,
		})
		if err != nil {
			return nil, cli.Internal("opening session store: %w", err)
		}
		store = file
	}

	var shutdown telemetry.Shutdown
	if cfg.API.Telemetry {
		shutdown, err = telemetry.Init(ctx, telemetryConfig(cfg))
		switch {
		case errors.Is(err, telemetry.ErrNoEndpoint):
			logger.Warn("telemetry enabled but no collector configured", "env", telemetry.EndpointEnvVar)
		case err != nil:
			return nil, cli.Internal("%w", err)
		}
	}
	instrument := shutdown != nil

	presenter := &urlPresenter{fallback: os.Stderr}
	tokenClient := http.DefaultClient
	if instrument {
		tokenClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	var endpoint *oauth2.Endpoint
	if cfg.Identity.AuthURL != "" {
		endpoint = &oauth2.Endpoint{AuthURL: cfg.Identity.AuthURL, TokenURL: cfg.Identity.TokenURL}
	}
	tokens, err := tokenservice.New(tokenservice.Config{
		ClientID: cfg.Identity.ClientID,
		TenantID: cfg.Identity.TenantID,
		Scopes:   cfg.Identity.Scopes,
		Endpoint: endpoint,
		Authorizer: &tokenservice.LoopbackAuthorizer{
			Port:    cfg.Identity.RedirectPort,
			Present: presenter.present,
			Logger:  logger,
		},
		HTTPClient: tokenClient,
		Logger:     logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}

	a, err := assemble(appParts{
		Config: cfg,
		Store:  store,
		Tokens: tokens,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
		Logger: logger,
	}, instrument)
	if err != nil {
		return nil, err
	}
	a.shutdown = shutdown
	a.presenter = presenter
	return a, nil
}

// loadConfig reads path, or the file named by TIMEOFF_CONFIG when path
// is empty, and validates it.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("%w", err)
	}
	return cfg, nil
}

// assemble builds the API client and the session controller on top of
// parts. The controller is not started.
func assemble(parts appParts, instrument bool) (*app, error) {
	logger := parts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &app{
		config: parts.Config,
		store:  parts.Store,
		out:    parts.Out,
		errOut: parts.ErrOut,
		logger: logger,
	}

	notifier := apiclient.NewUnauthorizedNotifier()
	client, err := apiclient.New(apiclient.Config{
		BaseURL:    parts.Config.API.BaseURL,
		Timeout:    parts.Config.RequestTimeout(),
		Store:      parts.Store,
		Notifier:   notifier,
		Transport:  parts.Transport,
		Instrument: instrument,
		Logger:     logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	controller, err := authstate.New(authstate.Config{
		Store:    parts.Store,
		Tokens:   parts.Tokens,
		Profiles: client,
		Notifier: notifier,
		Clock:    parts.Clock,
		Notice:   a.deliverNotice,
		Logger:   logger,
	})
	if err != nil {
		return nil, cli.Internal("%w", err)
	}
	a.client = client
	a.controller = controller
	return a, nil
}

// Close stops the controller and flushes telemetry.
func (a *app) Close() {
	a.controller.Close()
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.shutdown(ctx); err != nil {
			a.logger.Warn("flushing telemetry failed", "error", err)
		}
	}
}

// setNoticeSink redirects forced sign-out notices. nil restores the
// default of printing them to errOut.
func (a *app) setNoticeSink(sink func(authstate.Notice)) {
	a.noticeMu.Lock()
	defer a.noticeMu.Unlock()
	a.noticeSink = sink
}

func (a *app) deliverNotice(notice authstate.Notice) {
	a.noticeMu.Lock()
	sink := a.noticeSink
	a.noticeMu.Unlock()
	if sink != nil {
		sink(notice)
		return
	}
	fmt.Fprintf(a.errOut, "timeoff: %s\n", notice.Message)
}

// requireSession resolves the persisted session and loads the profile.
// A missing or rejected session is a forbidden error telling the user
// to sign in.
func (a *app) requireSession(ctx context.Context) (authstate.Snapshot, error) {
	a.controller.Start(ctx)
	if !a.controller.Snapshot().Authenticated() {
		return authstate.Snapshot{}, errNotSignedIn()
	}
	snapshot, err := a.controller.AwaitProfile(ctx)
	if err != nil {
		return authstate.Snapshot{}, classify("loading profile", err)
	}
	if snapshot.User == nil {
		// The session changed under the fetch.
		return authstate.Snapshot{}, errNotSignedIn()
	}
	return snapshot, nil
}

// newList builds a reconciler over the app's client.
func (a *app) newList(key requests.ListKey) (*reconciler.List, error) {
	list, err := reconciler.New(reconciler.Config{Remote: a.client, Key: key, Logger: a.logger})
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return list, nil
}

// urlPresenter shows the authorization URL of a sign-in: printed to
// fallback, or handed to the terminal UI while it owns the screen.
type urlPresenter struct {
	fallback io.Writer

	mu   sync.Mutex
	sink func(string)
}

func (p *urlPresenter) setSink(sink func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

func (p *urlPresenter) present(authURL string) error {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink != nil {
		sink(authURL)
		return nil
	}
	_, err := fmt.Fprintf(p.fallback, "Open this URL in a browser to sign in:\n\n  %s\n\n", authURL)
	return err
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		ServiceName:    "timeoff",
		ServiceVersion: version.Short(),
		Endpoint:       cfg.API.TelemetryEndpoint,
	}
}
