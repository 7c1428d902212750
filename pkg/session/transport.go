// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package session

import (
	"context"

	"github.com/vmware/tpurun/pkg/inventory"
)

// Conn is an open remote shell connection to one host.
type Conn interface {
	// Stream runs command and calls onLine for every line of its standard
	// output, in order. It returns the remote exit status once the output
	// ends. A command that exits non-zero is not an error; a missing exit
	// status is.
	Stream(ctx context.Context, command string, onLine func(line string)) (int, error)
	Close() error
}

// Uploader is implemented by connections that can copy local files to the
// remote host.
type Uploader interface {
	Upload(localPath, remotePath string) error
}

// Dialer opens connections to hosts. Implementations own the connect
// timeout.
type Dialer interface {
	Dial(ctx context.Context, host inventory.Host) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, host inventory.Host) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, host inventory.Host) (Conn, error) {
	return f(ctx, host)
}

// StageFile is a local file copied to the host before the command runs.
type StageFile struct {
	LocalPath  string
	RemotePath string
}
