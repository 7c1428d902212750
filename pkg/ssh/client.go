// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/vmware/tpurun/pkg/session"
)

// default constants
const (
	DefaultTimeout = 10 * time.Second
	DefaultPort    = 22
)

// Client represents ssh client.
type Client struct {
	*ssh.Client

	// agent is the agent connection opened for this client alone.
	agent io.Closer
}

type Config struct {
	User                 string
	Host                 string
	Port                 int
	Timeout              time.Duration
	Password             string
	PrivateKeyPath       string
	PrivateKeyPassphrase string
	// UseAgent adds the keys held by the agent at $SSH_AUTH_SOCK.
	UseAgent       bool
	HostKeyPolicy  HostKeyPolicy
	KnownHostsPath string
	Logger         *slog.Logger

	hostKeyCallBack ssh.HostKeyCallback
	agent           *sharedAgent
}

func (c *Config) SetHostKeyCallback(hostKeyCallBack ssh.HostKeyCallback) {
	c.hostKeyCallBack = hostKeyCallBack
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

// NewClient returns new ssh client and error if any. Both the TCP connect
// and the SSH handshake are bounded by config.Timeout, and abandoned when
// ctx is cancelled.
func NewClient(ctx context.Context, config *Config) (*Client, error) {
	var auth Auth
	var agentConn io.Closer
	var hostKeyCallback ssh.HostKeyCallback
	var err error

	// configure Auth as per users config
	auth, agentConn, err = configureAuth(config)
	if err != nil {
		return nil, errors.New("failed to configure auth: " + err.Error())
	}
	ok := false
	defer func() {
		if !ok && agentConn != nil {
			agentConn.Close()
		}
	}()

	// configure hostKeyCallback as per users config
	hostKeyCallback, err = configureHostKeyCallback(config)
	if err != nil {
		return nil, errors.New("failed to configure hostKeyCallBack: " + err.Error())
	}

	// configure default timeout
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	// configure default port
	if config.Port == 0 {
		config.Port = DefaultPort
	}

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	// the handshake has no timeout of its own
	_ = conn.SetDeadline(time.Now().Add(config.Timeout))
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, &ssh.ClientConfig{
		User:            config.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         config.Timeout,
	})
	if !stop() {
		if sshConn != nil {
			sshConn.Close()
		}
		conn.Close()
		return nil, ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	config.logger().Debug("ssh connection established", "addr", addr, "user", config.User)
	ok = true
	return &Client{Client: ssh.NewClient(sshConn, chans, reqs), agent: agentConn}, nil
}

// Run starts a new SSH session and runs the cmd, it returns CombinedOutput and err if any.
func (c Client) Run(cmd string) ([]byte, error) {
	var (
		err  error
		sess *ssh.Session
	)
	if sess, err = c.NewSession(); err != nil {
		return nil, err
	}
	defer sess.Close()

	return sess.CombinedOutput(cmd)
}

// Stream runs cmd in a new session and calls onLine for each line written to
// its standard output. It returns the remote exit status; a non-zero status
// is not an error. Cancelling ctx closes the underlying connection.
func (c Client) Stream(ctx context.Context, cmd string, onLine func(line string)) (int, error) {
	sess, err := c.NewSession()
	if err != nil {
		return 0, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return 0, err
	}
	if err := sess.Start(cmd); err != nil {
		return 0, fmt.Errorf("failed to start command: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { c.Client.Close() })
	defer stop()

	readErr := readLines(stdout, onLine)
	err = sess.Wait()

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	var (
		exitErr    *ssh.ExitError
		missingErr *ssh.ExitMissingError
	)
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		return exitErr.ExitStatus(), nil
	case errors.As(err, &missingErr):
		return 0, fmt.Errorf("%w: %v", session.ErrNoExitStatus, err)
	default:
		return 0, err
	}
	if readErr != nil {
		return 0, fmt.Errorf("failed to read output: %w", readErr)
	}
	return 0, nil
}

// readLines splits r into lines without a length limit, so a long line
// never leaves the remote side blocked on a full pipe.
func readLines(r io.Reader, onLine func(string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			onLine(strings.TrimRight(line, "\r\n"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			_, _ = io.Copy(io.Discard, r)
			return err
		}
	}
}

// Close client net connection.
func (c Client) Close() error {
	if c.agent != nil {
		c.agent.Close()
	}
	return c.Client.Close()
}
