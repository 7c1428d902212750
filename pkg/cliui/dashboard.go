// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/inventory"
)

const (
	// maxPaneLines bounds what a pane keeps for display. The full output
	// stays with the session for log saving.
	maxPaneLines  = 500
	minPaneHeight = 5

	defaultTermWidth  = 80
	defaultTermHeight = 24

	// header, status line and footer
	chromeHeight = 3

	preparingStatus = "Preparing..."
)

type (
	eventMsg        struct{ event.Event }
	eventsClosedMsg struct{}
	saveResultMsg   struct {
		path string
		err  error
	}
)

type pane struct {
	host     inventory.Host
	status   string
	severity event.Severity
	lines    []string
}

// DashboardConfig wires a Dashboard to a running execution.
type DashboardConfig struct {
	// Title is shown in the header, e.g. "TPUrun 0.1.0".
	Title    string
	Category inventory.Category
	Hosts    []inventory.Host
	Events   <-chan event.Event

	// SaveLogs writes every host's output so far and returns the log path.
	SaveLogs func() (string, error)
	// Cancel stops the execution. The dashboard keeps running until the
	// final ExecutionFinished event arrives.
	Cancel func()
}

// Dashboard is a bubbletea model showing one pane per host with its live
// status and output.
type Dashboard struct {
	cfg     DashboardConfig
	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	panes  []*pane
	byHost map[string]*pane

	width  int
	height int
	offset int

	subtitle string
	finished bool
	result   event.ExecutionFinished
	quitting bool
	closed   bool

	status      string
	statusStyle lipgloss.Style
	statusSeq   int
}

// NewDashboard returns a dashboard with every host in the Preparing state.
func NewDashboard(cfg DashboardConfig) *Dashboard {
	d := &Dashboard{
		cfg:     cfg,
		keys:    DefaultKeyMap,
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		byHost:  make(map[string]*pane, len(cfg.Hosts)),
		width:   defaultTermWidth,
		height:  defaultTermHeight,
	}
	for _, h := range cfg.Hosts {
		p := &pane{host: h, status: preparingStatus}
		d.panes = append(d.panes, p)
		d.byHost[h.Name] = p
	}
	d.subtitle = fmt.Sprintf("Running command on %d %s VMs", len(cfg.Hosts), kindLabel(cfg.Category))
	return d
}

// kindLabel renders "TPUv4" for a concrete category and "TPU" otherwise.
func kindLabel(c inventory.Category) string {
	if c.IsConcrete() {
		return "TPU" + string(c)
	}
	return "TPU"
}

// Finished reports whether the execution result was received.
func (d *Dashboard) Finished() bool {
	return d.finished
}

// Result returns the ExecutionFinished event, valid once Finished is true.
func (d *Dashboard) Result() event.ExecutionFinished {
	return d.result
}

func (d *Dashboard) Init() tea.Cmd {
	cmds := []tea.Cmd{d.spinner.Tick}
	if d.cfg.Events != nil {
		cmds = append(cmds, waitForEvent(d.cfg.Events))
	}
	return tea.Batch(cmds...)
}

func waitForEvent(ch <-chan event.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{e}
	}
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		d.help.Width = msg.Width
		d.clampOffset()
		return d, nil

	case tea.KeyMsg:
		return d.handleKey(msg)

	case eventMsg:
		d.apply(msg.Event)
		if d.finished && d.quitting {
			return d, tea.Quit
		}
		return d, waitForEvent(d.cfg.Events)

	case eventsClosedMsg:
		d.closed = true
		if d.quitting {
			return d, tea.Quit
		}
		return d, nil

	case saveResultMsg:
		if msg.err != nil {
			return d, d.setStatus(fmt.Sprintf("Failed to save logs: %v", msg.err), severityStyle(event.SeverityError))
		}
		return d, d.setStatus("Logs saved to "+msg.path, severityStyle(event.SeveritySuccess))

	case logRecordMsg:
		style := statusLineStyle.Foreground(colorMuted)
		switch {
		case msg.Level >= slog.LevelError:
			style = severityStyle(event.SeverityError)
		case msg.Level >= slog.LevelWarn:
			style = severityStyle(event.SeverityWarning)
		}
		return d, d.setStatus(msg.Summary, style)

	case logRecordFadeMsg:
		if msg.seq == d.statusSeq {
			d.status = ""
		}
		return d, nil

	case spinner.TickMsg:
		if d.finished {
			return d, nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, d.keys.Quit):
		if d.finished || d.closed || d.quitting {
			return d, tea.Quit
		}
		d.quitting = true
		d.subtitle = "Cancelling..."
		if d.cfg.Cancel != nil {
			d.cfg.Cancel()
		}
		return d, nil

	case key.Matches(msg, d.keys.Save):
		if d.cfg.SaveLogs == nil {
			return d, d.setStatus("Saving logs is not available", severityStyle(event.SeverityWarning))
		}
		save := d.cfg.SaveLogs
		return d, func() tea.Msg {
			path, err := save()
			return saveResultMsg{path: path, err: err}
		}

	case key.Matches(msg, d.keys.Up):
		d.offset--
		d.clampOffset()

	case key.Matches(msg, d.keys.Down):
		d.offset++
		d.clampOffset()
	}
	return d, nil
}

func (d *Dashboard) setStatus(text string, style lipgloss.Style) tea.Cmd {
	d.statusSeq++
	d.status = text
	d.statusStyle = style
	seq := d.statusSeq
	return tea.Tick(logRecordFadeDelay, func(time.Time) tea.Msg {
		return logRecordFadeMsg{seq: seq}
	})
}

func (d *Dashboard) apply(e event.Event) {
	switch e := e.(type) {
	case event.StatusChanged:
		if p, ok := d.byHost[e.Host]; ok {
			p.status = e.Message
			p.severity = e.Severity
		}
	case event.OutputLine:
		if p, ok := d.byHost[e.Host]; ok {
			p.lines = append(p.lines, e.Text)
			if over := len(p.lines) - maxPaneLines; over > 0 {
				p.lines = append(p.lines[:0], p.lines[over:]...)
			}
		}
	case event.ExecutionFinished:
		d.finished = true
		d.result = e
		d.subtitle = finishedSubtitle(e)
	}
}

func finishedSubtitle(e event.ExecutionFinished) string {
	if e.Success {
		return fmt.Sprintf("Execution complete on %d VMs", e.Total)
	}
	msg := fmt.Sprintf("Command failed on %d/%d VMs!", e.Failed, e.Total)
	switch {
	case e.LogErr != nil:
		return msg + " Saving logs failed."
	case e.LogPath != "":
		return msg + " Logs saved."
	}
	return msg
}

// layout returns the outer height of every pane and how many fit at once.
func (d *Dashboard) layout() (paneHeight, visible int) {
	available := d.height - chromeHeight
	if len(d.panes) == 0 || available <= 0 {
		return minPaneHeight, 1
	}
	paneHeight = available / len(d.panes)
	if paneHeight < minPaneHeight {
		paneHeight = minPaneHeight
	}
	visible = available / paneHeight
	if visible < 1 {
		visible = 1
	}
	if visible > len(d.panes) {
		visible = len(d.panes)
	}
	return paneHeight, visible
}

func (d *Dashboard) clampOffset() {
	_, visible := d.layout()
	if last := len(d.panes) - visible; d.offset > last {
		d.offset = last
	}
	if d.offset < 0 {
		d.offset = 0
	}
}

func (d *Dashboard) View() string {
	var b strings.Builder

	subtitle := d.subtitle
	if !d.finished {
		subtitle = d.spinner.View() + " " + subtitle
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render(d.cfg.Title),
		subtitleStyle.Render(subtitle),
	))
	b.WriteByte('\n')

	paneHeight, visible := d.layout()
	end := d.offset + visible
	if end > len(d.panes) {
		end = len(d.panes)
	}
	for _, p := range d.panes[d.offset:end] {
		b.WriteString(d.renderPane(p, paneHeight))
		b.WriteByte('\n')
	}

	if d.status != "" {
		b.WriteString(d.statusStyle.Render(d.status))
	} else if len(d.panes) > visible {
		b.WriteString(statusLineStyle.Foreground(colorMuted).Render(
			fmt.Sprintf("hosts %d-%d of %d", d.offset+1, end, len(d.panes))))
	}
	b.WriteByte('\n')

	footer := d.help.View(d.keys)
	switch {
	case d.finished && d.result.Success:
		footer = footerSuccessStyle.Width(d.width).Render(footer)
	case d.finished:
		footer = footerFailureStyle.Width(d.width).Render(footer)
	}
	b.WriteString(footer)
	return b.String()
}

func (d *Dashboard) renderPane(p *pane, outerHeight int) string {
	// border and padding take two columns each side
	contentWidth := d.width - 4
	if contentWidth < 10 {
		contentWidth = 10
	}
	bodyLines := outerHeight - 3
	if bodyLines < 0 {
		bodyLines = 0
	}

	title := paneTitleStyle.Render(p.host.Name)
	status := severityStyle(p.severity).Render(p.status)
	gap := contentWidth - lipgloss.Width(title) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}

	rows := make([]string, 0, bodyLines+1)
	rows = append(rows, title+strings.Repeat(" ", gap)+status)

	tail := p.lines
	if len(tail) > bodyLines {
		tail = tail[len(tail)-bodyLines:]
	}
	clip := lipgloss.NewStyle().MaxWidth(contentWidth)
	for _, line := range tail {
		rows = append(rows, clip.Render(line))
	}

	style := paneStyle.Width(d.width - 2).Height(outerHeight - 2)
	if p.severity == event.SeverityError {
		style = style.BorderForeground(colorError)
	}
	return style.Render(strings.Join(rows, "\n"))
}

// RunDashboard takes over the terminal until the user quits. When handler
// is non-nil, log records are shown in the dashboard status line.
func RunDashboard(d *Dashboard, handler *TUILogHandler) error {
	p := tea.NewProgram(d, tea.WithAltScreen())
	if handler != nil {
		handler.SetProgram(p)
	}
	_, err := p.Run()
	return err
}
