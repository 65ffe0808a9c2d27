// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP response helpers for the timeoff API
// client.
//
// ReadResponse bounds every body read at MaxResponseSize so a
// misbehaving server cannot exhaust memory.
// ErrorMessage extracts the human-readable message a backend puts in a
// JSON error body, falling back to the raw text.
package netutil

import (
	"encoding/json"
	"io"
	"strings"
)

// MaxResponseSize is the bound on API response body reads: 8 MB. A
// request list for a whole department is a few hundred kilobytes.
const MaxResponseSize int64 = 8 << 20

// maxErrorText bounds how much of a non-JSON error body ends up in an
// error message.
const maxErrorText = 512

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// errorFields are checked in order; "title" is where ASP.NET problem
// details put their summary.
var errorFields = []string{"message", "Message", "error", "title"}

// ErrorMessage reads an error response body and returns the message a
// user should see, or "" when the body carries nothing useful. Read
// errors are ignored: a partial body is still worth reporting.
func ErrorMessage(body io.Reader) string {
	data, _ := ReadResponse(body)
	return MessageFromBody(data)
}

// MessageFromBody is ErrorMessage over an already-read body.
func MessageFromBody(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return ""
	}
	var object map[string]any
	if err := json.Unmarshal(data, &object); err == nil {
		for _, field := range errorFields {
			if text, ok := object[field].(string); ok && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
		return ""
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return strings.TrimSpace(text)
	}
	if len(trimmed) > maxErrorText {
		trimmed = trimmed[:maxErrorText] + "..."
	}
	return trimmed
}
