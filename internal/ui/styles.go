// Copyright (c) 2025 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the Bubble Tea terminal interface for parley.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the rendered lipgloss styles for one theme.
type Styles struct {
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	ConnUp      lipgloss.Style
	ConnDown    lipgloss.Style
	ConnWait    lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemLabel    lipgloss.Style
	Timestamp      lipgloss.Style
	MessageErr     lipgloss.Style

	Sidebar         lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style

	InputPrompt lipgloss.Style
	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	Help        lipgloss.Style
}

// NewStyles builds the style set for a theme name ("dark" or "light").
func NewStyles(theme string) Styles {
	accent := lipgloss.Color("62")
	dim := lipgloss.Color("241")
	good := lipgloss.Color("42")
	bad := lipgloss.Color("196")
	warn := lipgloss.Color("214")
	userColor := lipgloss.Color("39")
	assistantColor := lipgloss.Color("135")

	if theme == "light" {
		accent = lipgloss.Color("26")
		dim = lipgloss.Color("245")
		userColor = lipgloss.Color("25")
		assistantColor = lipgloss.Color("91")
	}

	return Styles{
		Header:      lipgloss.NewStyle().Foreground(dim),
		HeaderTitle: lipgloss.NewStyle().Bold(true).Foreground(accent),
		ConnUp:      lipgloss.NewStyle().Foreground(good),
		ConnDown:    lipgloss.NewStyle().Foreground(bad),
		ConnWait:    lipgloss.NewStyle().Foreground(warn),

		UserLabel:      lipgloss.NewStyle().Bold(true).Foreground(userColor),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(assistantColor),
		SystemLabel:    lipgloss.NewStyle().Bold(true).Foreground(dim),
		Timestamp:      lipgloss.NewStyle().Foreground(dim),
		MessageErr:     lipgloss.NewStyle().Foreground(bad),

		Sidebar: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		SidebarItem:     lipgloss.NewStyle(),
		SidebarSelected: lipgloss.NewStyle().Bold(true).Foreground(accent),

		InputPrompt: lipgloss.NewStyle().Bold(true).Foreground(accent),
		StatusBar:   lipgloss.NewStyle().Foreground(dim),
		StatusError: lipgloss.NewStyle().Foreground(bad),
		Help:        lipgloss.NewStyle().Foreground(dim),
	}
}
