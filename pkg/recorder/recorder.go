// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

// Package recorder appends captured host output to a plain text log file.
package recorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Entry is the output captured from one host.
type Entry struct {
	Host  string
	Lines []string
}

// FileName derives the log file name from an application title:
// "TPU Run" becomes "tpu_run.log".
func FileName(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "_")) + ".log"
}

// Recorder appends entries to a single log file. Concurrent Record calls
// are serialised so sections never interleave.
type Recorder struct {
	mu   sync.Mutex
	path string
}

// New returns a Recorder writing to FileName(title) inside dir.
func New(dir, title string) *Recorder {
	return &Recorder{path: filepath.Join(dir, FileName(title))}
}

// Path returns the log file location.
func (r *Recorder) Path() string {
	return r.path
}

// Record appends one section per entry, in the given order. The file is
// never truncated.
func (r *Recorder) Record(entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w := bufio.NewWriter(f)
	for _, e := range entries {
		fmt.Fprintf(w, "\n-------- %s --------\n", e.Host)
		for _, line := range e.Lines {
			w.WriteString(line)
			w.WriteByte('\n')
		}
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write log file %s: %w", r.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file %s: %w", r.path, err)
	}
	return nil
}
