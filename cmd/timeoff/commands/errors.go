// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/bureau-foundation/timeoff/cmd/timeoff/cli"
	"github.com/bureau-foundation/timeoff/lib/apiclient"
	"github.com/bureau-foundation/timeoff/lib/authstate"
	"github.com/bureau-foundation/timeoff/lib/reconciler"
	"github.com/bureau-foundation/timeoff/lib/requests"
)

// errNoSession is wrapped by every "sign in first" error.
var errNoSession = errors.New("not signed in (run 'timeoff login')")

func errNotSignedIn() *cli.ToolError {
	return &cli.ToolError{Category: cli.CategoryForbidden, Err: errNoSession}
}

// classify maps an error from the libraries onto a ToolError category.
// action prefixes the message.
func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		return err
	}

	var invalid *requests.ValidationError
	if errors.As(err, &invalid) {
		return cli.Validation("%s: %s", action, invalid.Message)
	}
	if errors.Is(err, authstate.ErrNotAuthenticated) || apiclient.IsUnauthorized(err) {
		return errNotSignedIn()
	}
	if errors.Is(err, reconciler.ErrNotFound) {
		return cli.NotFound("%s: %w", action, err)
	}

	message := apiclient.ServerMessage(err)
	if message == "" {
		message = err.Error()
	}
	var apiError *apiclient.APIError
	if errors.As(err, &apiError) {
		switch {
		case apiError.StatusCode == http.StatusNotFound:
			return cli.NotFound("%s: %s", action, message)
		case apiError.StatusCode == http.StatusForbidden:
			return cli.Forbidden("%s: %s", action, message)
		case apiError.StatusCode == http.StatusBadRequest, apiError.StatusCode == http.StatusConflict,
			apiError.StatusCode == http.StatusUnprocessableEntity:
			return cli.Validation("%s: %s", action, message)
		case apiError.StatusCode == http.StatusTooManyRequests, apiError.StatusCode >= 500:
			return cli.Transient("%s: %s", action, message)
		}
		return cli.Internal("%s: %s", action, message)
	}

	var netError net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netError) {
		return cli.Transient("%s: %w", action, err)
	}
	return cli.Internal("%s: %w", action, err)
}

// listFailure turns the message a reconciler recorded into an error. A
// 401 during the operation has already signed the controller out.
func (a *app) listFailure(action, message string) error {
	if !a.controller.Snapshot().Authenticated() {
		return errNotSignedIn()
	}
	if message == reconciler.MessageNotFound {
		return cli.NotFound("%s: %s", action, message)
	}
	return cli.Transient("%s: %s", action, message)
}
