// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/recorder"
	"github.com/vmware/tpurun/pkg/session"
)

var (
	ErrEmptyCommand  = errors.New("command must not be empty")
	ErrDuplicateHost = errors.New("duplicate host name")
	ErrNoRecorder    = errors.New("no log recorder configured")
)

// CommandLine joins command tokens with single spaces. Tokens are not
// quoted; callers quote arguments that must keep their whitespace.
func CommandLine(tokens []string) string {
	return strings.Join(tokens, " ")
}

// Execution is a running plan.
type Execution struct {
	plan     *ExecutionPlan
	sessions []*session.Session
	log      *slog.Logger

	done   chan struct{}
	result *Result
}

// Execute runs the command on every host concurrently and blocks until all
// of them reached a terminal state. Per-host failures are reported in the
// result, never as an error; the error is reserved for an invalid plan.
func (p *ExecutionPlan) Execute(ctx context.Context) (*Result, error) {
	exec, err := p.Start(ctx)
	if err != nil {
		return nil, err
	}
	return exec.Wait(), nil
}

// Start launches one session per host and returns immediately. All hosts
// start connecting at once; there is no throttling and no overall deadline.
// Cancelling ctx fails every session that has not finished yet.
func (p *ExecutionPlan) Start(ctx context.Context) (*Execution, error) {
	command := CommandLine(p.Command)
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	seen := make(map[string]struct{}, len(p.Hosts))
	for _, h := range p.Hosts {
		if _, ok := seen[h.Name]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicateHost, h.Name)
		}
		seen[h.Name] = struct{}{}
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Execution{
		plan:     p,
		sessions: make([]*session.Session, len(p.Hosts)),
		log:      logger.With("plan", p.Name),
		done:     make(chan struct{}),
	}
	for i, h := range p.Hosts {
		e.sessions[i] = session.New(h, session.Config{
			Dialer:  p.Dialer,
			Command: command,
			Stage:   p.Stage,
			Events:  p.Events,
			Logger:  logger,
		})
	}

	e.log.Info("starting execution", "hosts", len(p.Hosts), "command", command)
	go e.run(ctx)
	return e, nil
}

func (e *Execution) run(ctx context.Context) {
	defer close(e.done)
	start := time.Now()

	outcomes := make([]session.Outcome, len(e.sessions))
	var wg sync.WaitGroup
	for i, s := range e.sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = s.Run(ctx)
		}()
	}
	wg.Wait()

	result := &Result{
		Hosts:    e.plan.Hosts,
		Outcomes: make(map[string]session.Outcome, len(outcomes)),
	}
	for i, s := range e.sessions {
		result.Outcomes[s.Host().Name] = outcomes[i]
		e.log.Debug("host finished",
			"host", s.Host().Name,
			"state", outcomes[i].State.String(),
			"exit_code", outcomes[i].ExitCode,
			"error", outcomes[i].Reason())
	}
	result.Summary = Aggregate(result.Outcomes)

	if e.shouldSave(result.Summary) {
		result.LogPath = e.plan.Recorder.Path()
		result.LogErr = e.plan.Recorder.Record(result.Entries())
		if result.LogErr != nil {
			e.log.Error("failed to save logs", "path", result.LogPath, "error", result.LogErr)
		} else {
			e.log.Info("logs saved", "path", result.LogPath)
		}
	}

	e.log.Info("execution finished",
		"success", result.Summary.Success,
		"failed", result.Summary.Failed,
		"total", result.Summary.Total,
		"duration", time.Since(start).Round(time.Millisecond))

	e.plan.Events.Emit(ctx, event.ExecutionFinished{
		Success: result.Summary.Success,
		Failed:  result.Summary.Failed,
		Total:   result.Summary.Total,
		LogPath: result.LogPath,
		LogErr:  result.LogErr,
	})
	e.result = result
}

func (e *Execution) shouldSave(s Summary) bool {
	if e.plan.Recorder == nil {
		return false
	}
	switch e.plan.Save {
	case SaveAlways:
		return true
	case SaveOnFailure:
		return s.Failed > 0
	default:
		return false
	}
}

// Wait blocks until every session is terminal and returns the result.
func (e *Execution) Wait() *Result {
	<-e.done
	return e.result
}

// Done is closed once the result is available.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Snapshot copies the output captured so far, in inventory order. It is
// safe to call while sessions are running.
func (e *Execution) Snapshot() []recorder.Entry {
	entries := make([]recorder.Entry, 0, len(e.sessions))
	for _, s := range e.sessions {
		entries = append(entries, recorder.Entry{Host: s.Host().Name, Lines: s.Lines()})
	}
	return entries
}

// SaveLogs appends the current output of every host to the log file and
// returns its path. It may be called at any time, any number of times.
func (e *Execution) SaveLogs() (string, error) {
	if e.plan.Recorder == nil {
		return "", ErrNoRecorder
	}
	path := e.plan.Recorder.Path()
	if err := e.plan.Recorder.Record(e.Snapshot()); err != nil {
		return path, err
	}
	e.log.Info("logs saved on request", "path", path)
	return path, nil
}
