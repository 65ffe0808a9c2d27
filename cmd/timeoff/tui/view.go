// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/timeoff/lib/requests"
	"github.com/bureau-foundation/timeoff/lib/routeguard"
)

// defaultWidth is used for separators before the first WindowSizeMsg.
const defaultWidth = 80

// View implements tea.Model.
func (model Model) View() string {
	var sections []string
	sections = append(sections, model.renderHeader())
	if model.Current() == routeguard.ScreenLogin {
		sections = append(sections, model.renderLogin())
	} else {
		sections = append(sections, model.renderList())
	}

	width := model.width
	if width <= 0 {
		width = defaultWidth
	}
	sections = append(sections, lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", width)))
	sections = append(sections, model.renderFooter())
	return strings.Join(sections, "\n")
}

func (model Model) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render("timeoff")
	if model.Current() == routeguard.ScreenLogin {
		return title + "\n"
	}

	tabs := []string{}
	for _, listKey := range []requests.ListKey{requests.ListSent, requests.ListReceived} {
		label := "Sent"
		if listKey == requests.ListReceived {
			label = "Received"
		}
		style := lipgloss.NewStyle().Foreground(model.theme.FaintText).Padding(0, 1)
		if listKey == model.activeKey() {
			style = style.Foreground(model.theme.ActiveTab).Bold(true).Underline(true)
		}
		tabs = append(tabs, style.Render(label))
	}

	line := title + "  " + strings.Join(tabs, "")
	if user := model.snapshot.User; user != nil {
		line += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  " + user.DisplayName())
	}
	return line + "\n"
}

func (model Model) renderLogin() string {
	var lines []string
	switch {
	case !model.snapshot.State.Settled():
		lines = append(lines, model.spinner.View()+" Restoring session...")
	case model.signingIn:
		lines = append(lines, model.spinner.View()+" Waiting for sign-in to complete in the browser.")
		if model.authURL != "" {
			lines = append(lines, "", "If no browser opened, visit:", "  "+model.authURL)
		}
	default:
		lines = append(lines, "Sign in with your Microsoft account to see your requests.")
	}
	if model.notice != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(model.theme.NoticeText).Render(model.notice))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (model Model) renderList() string {
	state := model.states[model.activeKey()]
	var lines []string
	if state.Loading {
		lines = append(lines, model.spinner.View()+" Loading...")
	}
	if state.Err != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(state.Err))
	}
	if len(state.Items) == 0 && !state.Loading {
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("No requests."))
	}

	for index, record := range state.Items {
		label := record.Kind.Label()
		if record.PermitType != "" {
			label += " (" + record.PermitType + ")"
		}
		status := lipgloss.NewStyle().
			Foreground(model.theme.StatusColor(record.Status)).
			Render(record.Status.Label())
		row := fmt.Sprintf("%6d  %-28s  %-35s  ", record.ID, label, requests.FormatRange(record)) + status
		if index == model.cursor {
			row = lipgloss.NewStyle().
				Background(model.theme.SelectedBackground).
				Foreground(model.theme.SelectedForeground).
				Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (model Model) renderFooter() string {
	if model.status != "" {
		return lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(model.status)
	}
	var bindings []key.Binding
	if model.Current() == routeguard.ScreenLogin {
		bindings = []key.Binding{model.keys.SignIn, model.keys.Quit}
		if model.signingIn {
			bindings = []key.Binding{model.keys.Cancel, model.keys.Quit}
		}
	} else {
		bindings = []key.Binding{model.keys.Up, model.keys.Down, model.keys.SwitchList, model.keys.Reload}
		if model.activeKey() == requests.ListReceived {
			bindings = append(bindings, model.keys.Approve, model.keys.Reject)
		}
		bindings = append(bindings, model.keys.Delete, model.keys.SignOut, model.keys.Quit)
	}

	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(strings.Join(parts, "  •  "))
}
