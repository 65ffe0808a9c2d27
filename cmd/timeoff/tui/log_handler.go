// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// logRecordMsg delivers a slog record to the model for display in the
// footer.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears the log line and restores the key help.
type logRecordFadeMsg struct{}

// logRecordFadeDelay is how long a log line stays in the footer.
const logRecordFadeDelay = 5 * time.Second

// LogHandler is a slog.Handler that routes records into the program
// as footer messages, since stderr is not visible while the UI owns
// the terminal. Records arriving before SetSender are dropped.
//
// Handlers derived via WithAttrs/WithGroup share the sender, so a
// single SetSender call reaches all of them.
type LogHandler struct {
	level  slog.Level
	sender *atomic.Pointer[Sender]
	attrs  []slog.Attr
	group  string
}

// NewLogHandler returns a handler for records at or above level.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{level: level, sender: &atomic.Pointer[Sender]{}}
}

// SetSender sets the program that receives records. Safe to call from
// any goroutine.
func (handler *LogHandler) SetSender(sender Sender) {
	handler.sender.Store(&sender)
}

// Enabled implements slog.Handler.
func (handler *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= handler.level
}

// Handle formats the record as "message (key=value, ...)" and sends it.
func (handler *LogHandler) Handle(_ context.Context, record slog.Record) error {
	sender := handler.sender.Load()
	if sender == nil {
		return nil
	}

	var parts []string
	for _, attr := range handler.attrs {
		parts = append(parts, handler.format(attr))
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, handler.format(attr))
		return true
	})
	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	(*sender).Send(logRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

func (handler *LogHandler) format(attr slog.Attr) string {
	name := attr.Key
	if handler.group != "" {
		name = handler.group + "." + name
	}
	return fmt.Sprintf("%s=%s", name, attr.Value)
}

// WithAttrs implements slog.Handler.
func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := *handler
	derived.attrs = append(append([]slog.Attr(nil), handler.attrs...), attrs...)
	return &derived
}

// WithGroup implements slog.Handler.
func (handler *LogHandler) WithGroup(name string) slog.Handler {
	derived := *handler
	derived.attrs = append([]slog.Attr(nil), handler.attrs...)
	if derived.group == "" {
		derived.group = name
	} else {
		derived.group += "." + name
	}
	return &derived
}
