// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/vmware/tpurun/pkg/event"
)

var (
	colorInfo    = lipgloss.Color("214") // orange
	colorSuccess = lipgloss.Color("82")  // lime
	colorWarning = lipgloss.Color("220")
	colorError   = lipgloss.Color("196")
	colorBorder  = lipgloss.Color("69") // cornflower blue
	colorMuted   = lipgloss.Color("245")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	paneTitleStyle = lipgloss.NewStyle().Bold(true)

	footerSuccessStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("16")).
				Background(colorSuccess).
				Padding(0, 1)

	footerFailureStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("231")).
				Background(lipgloss.Color("88")).
				Padding(0, 1)

	statusLineStyle = lipgloss.NewStyle().Padding(0, 1)
)

func severityColor(s event.Severity) lipgloss.Color {
	switch s {
	case event.SeveritySuccess:
		return colorSuccess
	case event.SeverityWarning:
		return colorWarning
	case event.SeverityError:
		return colorError
	default:
		return colorInfo
	}
}

func severityStyle(s event.Severity) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(severityColor(s))
}
