// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/timeoff/lib/requests"
)

// Theme defines the colors of the terminal UI.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Request status colors.
	StatusApproved  lipgloss.Color
	StatusPending   lipgloss.Color
	StatusRejected  lipgloss.Color
	StatusCancelled lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	ActiveTab        lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ErrorText        lipgloss.Color
	NoticeText       lipgloss.Color
}

// DefaultTheme uses the status palette of the mobile client: material
// green, orange, and red.
var DefaultTheme = Theme{
	NormalText:         lipgloss.Color("252"),
	FaintText:          lipgloss.Color("243"),
	SelectedBackground: lipgloss.Color("237"),
	SelectedForeground: lipgloss.Color("255"),
	StatusApproved:     lipgloss.Color("#4CAF50"),
	StatusPending:      lipgloss.Color("#F59F28"),
	StatusRejected:     lipgloss.Color("#FF0000"),
	StatusCancelled:    lipgloss.Color("243"),
	HeaderForeground:   lipgloss.Color("255"),
	ActiveTab:          lipgloss.Color("#F7B458"),
	BorderColor:        lipgloss.Color("240"),
	HelpText:           lipgloss.Color("245"),
	ErrorText:          lipgloss.Color("203"),
	NoticeText:         lipgloss.Color("#F59F28"),
}

// StatusColor returns the color for a request status. Unknown statuses
// render faint.
func (theme Theme) StatusColor(status requests.Status) lipgloss.Color {
	switch status {
	case requests.StatusApproved:
		return theme.StatusApproved
	case requests.StatusPending:
		return theme.StatusPending
	case requests.StatusRejected:
		return theme.StatusRejected
	default:
		return theme.StatusCancelled
	}
}
