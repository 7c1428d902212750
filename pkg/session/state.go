// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package session

// State is a step in a host session's lifecycle. States only move forward;
// Completed and Failed are terminal.
type State int

const (
	Pending State = iota
	Connecting
	Connected
	Streaming
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Streaming:
		return "Streaming"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// canTransition reports whether from -> to is a legal forward step.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case Failed:
		return true
	case Completed:
		return from == Streaming
	default:
		return to == from+1
	}
}

// Outcome is the terminal result of a session together with everything it
// captured.
type Outcome struct {
	State    State
	ExitCode int
	// Err is the failure reason when State is Failed.
	Err   error
	Lines []string
}

// Success reports whether the command ran to completion with exit code 0.
func (o Outcome) Success() bool {
	return o.State == Completed && o.ExitCode == 0
}

// Reason returns the failure reason as text, or "" for completed sessions.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
