// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logRecordMsg delivers a slog record to the dashboard status line.
type logRecordMsg struct {
	Summary string
	Level   slog.Level
}

// logRecordFadeMsg clears the status line unless a newer record replaced
// the one it was scheduled for.
type logRecordFadeMsg struct {
	seq int
}

const logRecordFadeDelay = 5 * time.Second

// TUILogHandler is a slog.Handler that routes records into a running
// bubbletea program while the dashboard owns the terminal. Records below
// the configured level, and records arriving before SetProgram, are dropped.
//
// Handlers derived via WithAttrs and WithGroup share the program pointer,
// so one SetProgram call reaches all of them.
type TUILogHandler struct {
	level  slog.Level
	send   *atomic.Pointer[func(tea.Msg)]
	attrs  []slog.Attr
	groups []string
}

// NewTUILogHandler returns a handler delivering records at or above level.
func NewTUILogHandler(level slog.Level) *TUILogHandler {
	return &TUILogHandler{
		level: level,
		send:  &atomic.Pointer[func(tea.Msg)]{},
	}
}

// SetProgram sets the program receiving log records. Safe to call from any
// goroutine.
func (h *TUILogHandler) SetProgram(program *tea.Program) {
	h.setSender(program.Send)
}

func (h *TUILogHandler) setSender(send func(tea.Msg)) {
	h.send.Store(&send)
}

func (h *TUILogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats the record as "message (key=value, ...)" and sends it.
func (h *TUILogHandler) Handle(_ context.Context, record slog.Record) error {
	send := h.send.Load()
	if send == nil {
		return nil
	}

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	var parts []string
	for _, attr := range h.attrs {
		parts = append(parts, attr.Key+"="+attr.Value.String())
	}
	record.Attrs(func(attr slog.Attr) bool {
		parts = append(parts, prefix+attr.Key+"="+attr.Value.String())
		return true
	})

	summary := record.Message
	if len(parts) > 0 {
		summary += " (" + strings.Join(parts, ", ") + ")"
	}

	(*send)(logRecordMsg{Summary: summary, Level: record.Level})
	return nil
}

func (h *TUILogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	derived := slices.Clone(h.attrs)
	for _, attr := range attrs {
		derived = append(derived, slog.Attr{Key: prefix + attr.Key, Value: attr.Value})
	}
	return &TUILogHandler{
		level:  h.level,
		send:   h.send,
		attrs:  derived,
		groups: slices.Clone(h.groups),
	}
}

func (h *TUILogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &TUILogHandler{
		level:  h.level,
		send:   h.send,
		attrs:  slices.Clone(h.attrs),
		groups: append(slices.Clone(h.groups), name),
	}
}
