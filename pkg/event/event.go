// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package event defines the status and output events emitted while a
// command runs across hosts. Presenters consume them; the execution engine
// never formats them.
package event

import "context"

// Severity hints how a presenter should render a status change.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// Event is one of StatusChanged, OutputLine or ExecutionFinished.
type Event interface {
	isEvent()
}

// StatusChanged reports a host session moving to a new state.
type StatusChanged struct {
	Host     string
	Message  string
	Severity Severity
}

// OutputLine carries one captured line from a host.
type OutputLine struct {
	Host string
	Text string
}

// ExecutionFinished is emitted once after every host reached a terminal state.
type ExecutionFinished struct {
	Success bool
	Failed  int
	Total   int

	// LogPath is set when the output was saved because of failures.
	LogPath string
	// LogErr is the error from that save, if any.
	LogErr error
}

func (StatusChanged) isEvent()     {}
func (OutputLine) isEvent()        {}
func (ExecutionFinished) isEvent() {}

// Emitter delivers events to a single consumer channel. A nil channel
// discards everything.
type Emitter chan<- Event

// Emit sends e unless ctx is done first, so a cancelled run never blocks on
// a consumer that has gone away.
func (em Emitter) Emit(ctx context.Context, e Event) {
	if em == nil {
		return
	}
	select {
	case em <- e:
		return
	default:
	}
	select {
	case em <- e:
	case <-ctx.Done():
	}
}
