// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/inventory"
)

// ClosedLine is appended to the captured output after the remote command
// exits.
const ClosedLine = "connection closed"

// failedExitCode is reported for sessions that never produced an exit status.
const failedExitCode = 1

var (
	// ErrCancelled is the failure reason of sessions stopped by their context.
	ErrCancelled = errors.New("cancelled")

	// ErrNoExitStatus is returned by Conn implementations when the remote
	// process ended without reporting an exit status.
	ErrNoExitStatus = errors.New("remote command exited without exit status")

	errNoUploader = errors.New("connection does not support file staging")
)

// Config parameterises a Session. Every session of one execution shares it.
type Config struct {
	Dialer  Dialer
	Command string
	Stage   []StageFile
	Events  event.Emitter
	Logger  *slog.Logger
}

// Session drives one host through connect, run, stream and exit. Its state
// and captured lines are written only by Run.
type Session struct {
	host inventory.Host
	cfg  Config
	log  *slog.Logger

	mu       sync.Mutex
	state    State
	exitCode int
	err      error
	lines    []string
}

// New returns a Pending session for host.
func New(host inventory.Host, cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		host: host,
		cfg:  cfg,
		log:  logger.With("host", host.Name),
	}
}

// Host returns the host this session targets.
func (s *Session) Host() inventory.Host {
	return s.host
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Lines returns a copy of the output captured so far.
func (s *Session) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Outcome returns a snapshot of the session. It is final once State is
// terminal.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Outcome{
		State:    s.state,
		ExitCode: s.exitCode,
		Err:      s.err,
		Lines:    append([]string(nil), s.lines...),
	}
}

// Run executes the configured command on the host and returns the terminal
// outcome. It never panics and never returns a non-terminal outcome.
// Cancelling ctx tears the connection down and fails the session with
// ErrCancelled.
func (s *Session) Run(ctx context.Context) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("session panic", "panic", r)
			out = s.fail(ctx, fmt.Errorf("session panic: %v", r))
		}
	}()

	if ctx.Err() != nil {
		return s.fail(ctx, ErrCancelled)
	}

	s.advance(ctx, Connecting, fmt.Sprintf("Connecting to %s...", s.host.ExternalIP), event.SeverityInfo)
	conn, err := s.dial(ctx)
	if err != nil {
		return s.fail(ctx, s.cause(ctx, err))
	}
	defer conn.Close()
	s.advance(ctx, Connected, "Connected", event.SeveritySuccess)

	if err := s.stage(ctx, conn); err != nil {
		return s.fail(ctx, s.cause(ctx, err))
	}

	s.advance(ctx, Streaming, "Running", event.SeverityInfo)
	s.capture(ctx, s.cfg.Command)
	exitCode, err := s.stream(ctx, conn)
	if err != nil {
		return s.fail(ctx, s.cause(ctx, err))
	}
	s.capture(ctx, ClosedLine)

	return s.complete(ctx, exitCode)
}

// dial opens the connection, giving up as soon as ctx is cancelled even if
// the dialer does not.
func (s *Session) dial(ctx context.Context) (Conn, error) {
	if s.cfg.Dialer == nil {
		return nil, errors.New("no dialer configured")
	}

	type dialResult struct {
		conn Conn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- dialResult{err: fmt.Errorf("dial panic: %v", r)}
			}
		}()
		conn, err := s.cfg.Dialer.Dial(ctx, s.host)
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case res := <-done:
		return res.conn, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.conn != nil {
				res.conn.Close()
			}
		}()
		return nil, ErrCancelled
	}
}

func (s *Session) stage(ctx context.Context, conn Conn) error {
	if len(s.cfg.Stage) == 0 {
		return nil
	}
	up, ok := conn.(Uploader)
	if !ok {
		return errNoUploader
	}
	for _, f := range s.cfg.Stage {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		s.emit(ctx, event.StatusChanged{
			Host:     s.host.Name,
			Message:  fmt.Sprintf("Uploading %s", f.RemotePath),
			Severity: event.SeverityInfo,
		})
		if err := s.upload(ctx, conn, up, f); err != nil {
			return err
		}
		s.log.Debug("staged file", "local", f.LocalPath, "remote", f.RemotePath)
	}
	return nil
}

// upload copies one file. Uploads carry no deadline of their own, so a
// cancelled ctx closes the connection to unblock the transfer.
func (s *Session) upload(ctx context.Context, conn Conn, up Uploader, f StageFile) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("upload panic: %v", r)
			}
		}()
		done <- up.Upload(f.LocalPath, f.RemotePath)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("upload %s to %s: %w", f.LocalPath, f.RemotePath, err)
		}
		return nil
	case <-ctx.Done():
		conn.Close()
		return ErrCancelled
	}
}

// stream runs the command and waits for its exit status. When ctx is
// cancelled the connection is closed and stream returns without waiting for
// the transport to notice.
func (s *Session) stream(ctx context.Context, conn Conn) (int, error) {
	type streamResult struct {
		code int
		err  error
	}
	done := make(chan streamResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- streamResult{err: fmt.Errorf("stream panic: %v", r)}
			}
		}()
		code, err := conn.Stream(ctx, s.cfg.Command, func(line string) {
			s.capture(ctx, line)
		})
		done <- streamResult{code: code, err: err}
	}()

	select {
	case res := <-done:
		return res.code, res.err
	case <-ctx.Done():
		conn.Close()
		return 0, ErrCancelled
	}
}

// cause maps transport errors seen after cancellation to ErrCancelled.
func (s *Session) cause(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

// capture appends a line to the buffer and publishes it. Lines arriving
// after the session reached a terminal state are dropped.
func (s *Session) capture(ctx context.Context, line string) {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.lines = append(s.lines, line)
	s.mu.Unlock()

	s.emit(ctx, event.OutputLine{Host: s.host.Name, Text: line})
}

func (s *Session) advance(ctx context.Context, to State, msg string, sev event.Severity) {
	if err := s.transition(to, nil, 0); err != nil {
		panic(err)
	}
	s.log.Debug("session state changed", "state", to.String())
	s.emit(ctx, event.StatusChanged{Host: s.host.Name, Message: msg, Severity: sev})
}

func (s *Session) complete(ctx context.Context, exitCode int) Outcome {
	if err := s.transition(Completed, nil, exitCode); err != nil {
		return s.fail(ctx, err)
	}
	sev := event.SeverityInfo
	if exitCode == 0 {
		sev = event.SeveritySuccess
	}
	s.log.Debug("session completed", "exit_code", exitCode)
	s.emit(ctx, event.StatusChanged{
		Host:     s.host.Name,
		Message:  fmt.Sprintf("Completed (exit %d)", exitCode),
		Severity: sev,
	})
	return s.Outcome()
}

// fail moves the session to Failed. A session that already reached a
// terminal state keeps it.
func (s *Session) fail(ctx context.Context, reason error) Outcome {
	if err := s.transition(Failed, reason, failedExitCode); err != nil {
		return s.Outcome()
	}
	s.log.Debug("session failed", "error", reason)
	s.emit(ctx, event.StatusChanged{
		Host:     s.host.Name,
		Message:  fmt.Sprintf("Failed: %v", reason),
		Severity: event.SeverityError,
	})
	return s.Outcome()
}

func (s *Session) transition(to State, reason error, exitCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !canTransition(s.state, to) {
		return fmt.Errorf("illegal session transition %s -> %s", s.state, to)
	}
	s.state = to
	if to.Terminal() {
		s.exitCode = exitCode
		s.err = reason
	}
	return nil
}

func (s *Session) emit(ctx context.Context, e event.Event) {
	s.cfg.Events.Emit(ctx, e)
}
