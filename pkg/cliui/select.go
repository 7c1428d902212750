// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vmware/tpurun/pkg/inventory"
)

const (
	defaultWidth = 20
	listHeight   = 14
)

var (
	ErrNoOptions     = errors.New("no options provided")
	ErrUserCancelled = errors.New("user cancelled")
)

var (
	titleStyle      = lipgloss.NewStyle().MarginLeft(2)
	paginationStyle = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle       = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
)

// Select displays an interactive command-line menu with a given title
// and a list of options, allowing the user to choose one of them.
//
// It returns the zero-based index of the chosen option and its value.
// ErrUserCancelled is returned when the menu is left with q, esc or ctrl+c.
//
// Example usage:
//
//	options := []string{"v4-node-0 (34.1.1.2)", "v4-node-1 (34.1.1.3)"}
//	idx, choice, err := cliui.Select("Select the TPU VM to run on:", options)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("You selected option %d: %s\n", idx, choice)
func Select(title string, options []string) (int, string, error) {
	m, err := newSelectModel(title, options)
	if err != nil {
		return -1, "", err
	}

	if _, err := tea.NewProgram(m).Run(); err != nil {
		return -1, "", fmt.Errorf("error selecting from CLI menu: %w", err)
	}

	if m.cancelled {
		return -1, "", ErrUserCancelled
	}

	return m.index, m.choice, nil
}

func newSelectModel(title string, options []string) (*picker, error) {
	var items []list.Item
	for _, option := range options {
		items = append(items, item(option))
	}

	if len(items) == 0 {
		return nil, ErrNoOptions
	}

	l := list.New(items, itemDelegate{}, defaultWidth, listHeight)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{pickKey}
	}

	return &picker{
		list:  l,
		index: -1,
	}, nil
}

// HostOptions renders hosts as "<name> (<external ip>)" menu entries.
func HostOptions(hosts []inventory.Host) []string {
	options := make([]string, 0, len(hosts))
	for _, h := range hosts {
		options = append(options, fmt.Sprintf("%s (%s)", h.Name, h.ExternalIP))
	}
	return options
}

// PickHost asks the user to choose a single host out of hosts.
func PickHost(title string, hosts []inventory.Host) (inventory.Host, error) {
	idx, _, err := Select(title, HostOptions(hosts))
	if err != nil {
		return inventory.Host{}, err
	}
	return hosts[idx], nil
}
