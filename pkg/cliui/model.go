// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var pickedStyle = lipgloss.NewStyle().Margin(1, 0, 2, 4)

var pickKey = key.NewBinding(
	key.WithKeys("enter"),
	key.WithHelp("enter", "run here"),
)

// picker is the single choice menu behind Select. It quits on the first
// decision; index stays -1 unless an entry was chosen.
type picker struct {
	list      list.Model
	index     int
	choice    string
	cancelled bool
}

func (m *picker) Init() tea.Cmd {
	return nil
}

func (m *picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		if msg.Height > 0 && msg.Height < listHeight {
			m.list.SetHeight(msg.Height)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, pickKey):
			if it, ok := m.list.SelectedItem().(item); ok {
				m.index = m.list.Index()
				m.choice = string(it)
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *picker) View() string {
	switch {
	case m.choice != "":
		return pickedStyle.Render("Running on " + m.choice)
	case m.cancelled:
		return pickedStyle.Render("No TPU VM selected.")
	}
	return "\n" + m.list.View()
}
