// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"log/slog"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

type msgSink struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (s *msgSink) send(msg tea.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func TestTUILogHandlerDropsBeforeProgram(t *testing.T) {
	handler := NewTUILogHandler(slog.LevelInfo)
	slog.New(handler).Info("nobody listens")

	sink := &msgSink{}
	handler.setSender(sink.send)
	require.Empty(t, sink.msgs)
}

func TestTUILogHandlerFormatsRecords(t *testing.T) {
	handler := NewTUILogHandler(slog.LevelInfo)
	sink := &msgSink{}
	handler.setSender(sink.send)

	logger := slog.New(handler)
	logger.Debug("too quiet")
	logger.Info("logs saved", "path", "tpurun.log")
	logger.With("plan", "TPUrun").WithGroup("ssh").Warn("retrying", "host", "v4-node-0")

	require.Equal(t, []tea.Msg{
		logRecordMsg{Summary: "logs saved (path=tpurun.log)", Level: slog.LevelInfo},
		logRecordMsg{Summary: "retrying (plan=TPUrun, ssh.host=v4-node-0)", Level: slog.LevelWarn},
	}, sink.msgs)
}

func TestTUILogHandlerDerivedShareProgram(t *testing.T) {
	handler := NewTUILogHandler(slog.LevelDebug)
	derived := slog.New(handler).With("host", "v4-node-1")

	sink := &msgSink{}
	handler.setSender(sink.send)
	derived.Debug("dialing")

	require.Equal(t, []tea.Msg{
		logRecordMsg{Summary: "dialing (host=v4-node-1)", Level: slog.LevelDebug},
	}, sink.msgs)
}
