// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"log/slog"

	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/inventory"
	"github.com/vmware/tpurun/pkg/recorder"
	"github.com/vmware/tpurun/pkg/session"
)

// SavePolicy decides when captured output is written to the log file
// without an explicit request.
type SavePolicy int

const (
	// SaveOnFailure saves every host's output when any host failed.
	SaveOnFailure SavePolicy = iota
	// SaveAlways saves after every execution.
	SaveAlways
	// SaveNever only saves on explicit request.
	SaveNever
)

// ExecutionPlan runs one command on a set of hosts.
type ExecutionPlan struct {
	Name    string
	Hosts   []inventory.Host
	Command []string
	Stage   []session.StageFile

	Dialer   session.Dialer
	Events   event.Emitter
	Recorder *recorder.Recorder
	Save     SavePolicy
	Logger   *slog.Logger
}

// Summary is the aggregated verdict of an execution.
type Summary struct {
	Success bool
	Failed  int
	Total   int
}

// Result holds the terminal outcome of every host of an execution.
type Result struct {
	// Hosts is the executed host set in inventory order.
	Hosts []inventory.Host
	// Outcomes is keyed by host name.
	Outcomes map[string]session.Outcome
	Summary  Summary

	// LogPath and LogErr describe the automatic save, if one happened.
	LogPath string
	LogErr  error
}

// Entries returns the captured output of every host in inventory order.
func (r *Result) Entries() []recorder.Entry {
	entries := make([]recorder.Entry, 0, len(r.Hosts))
	for _, h := range r.Hosts {
		entries = append(entries, recorder.Entry{
			Host:  h.Name,
			Lines: append([]string(nil), r.Outcomes[h.Name].Lines...),
		})
	}
	return entries
}
