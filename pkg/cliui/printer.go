// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/inventory"
)

// Printer writes events as plain lines, one per status change or output
// line, prefixed with the host name. It is used when stdout is not a
// terminal or the dashboard is disabled.
type Printer struct {
	w        io.Writer
	color    bool
	colWidth int
}

// NewPrinter returns a Printer aligning host names of hosts. Colours are
// applied only when color is true.
func NewPrinter(w io.Writer, hosts []inventory.Host, color bool) *Printer {
	p := &Printer{w: w, color: color}
	for _, h := range hosts {
		if n := len(h.Name); n > p.colWidth {
			p.colWidth = n
		}
	}
	return p
}

// Run prints events until the channel is closed. It reports the
// ExecutionFinished event, if one was received.
func (p *Printer) Run(events <-chan event.Event) (event.ExecutionFinished, bool) {
	var (
		result   event.ExecutionFinished
		finished bool
	)
	for e := range events {
		p.Print(e)
		if f, ok := e.(event.ExecutionFinished); ok {
			result, finished = f, true
		}
	}
	return result, finished
}

// Print writes a single event.
func (p *Printer) Print(e event.Event) {
	switch e := e.(type) {
	case event.StatusChanged:
		fmt.Fprintf(p.w, "[%-*s] %s\n", p.colWidth, e.Host, p.paint(e.Message, severityStyle(e.Severity)))
	case event.OutputLine:
		fmt.Fprintf(p.w, "%-*s | %s\n", p.colWidth+2, e.Host, e.Text)
	case event.ExecutionFinished:
		style := severityStyle(event.SeveritySuccess)
		if !e.Success {
			style = severityStyle(event.SeverityError)
		}
		fmt.Fprintln(p.w, p.paint(finishedSubtitle(e), style))
		switch {
		case e.LogErr != nil:
			fmt.Fprintf(p.w, "Failed to save logs to %s: %v\n", e.LogPath, e.LogErr)
		case e.LogPath != "":
			fmt.Fprintf(p.w, "Logs saved to %s\n", e.LogPath)
		}
	}
}

func (p *Printer) paint(s string, style lipgloss.Style) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}
