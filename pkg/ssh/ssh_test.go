// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/vmware/tpurun/pkg/inventory"
	"github.com/vmware/tpurun/pkg/session"
)

const (
	testUser     = "testuser"
	testPassword = "testpass"
)

func TestSSHConnectionWithWrongPassword(t *testing.T) {
	server := startServer(t)

	hostConfig := server.clientConfig()
	hostConfig.Password = "123456"

	_, err := NewClient(context.Background(), hostConfig)
	require.Error(t, err)
}

func TestSSHConnectionWithCorrectPassword(t *testing.T) {
	server := startServer(t)

	hostConfig := server.clientConfig()
	hostConfig.Password = testPassword

	client, err := NewClient(context.Background(), hostConfig)
	require.NoError(t, err)
	defer client.Close()
}

func TestSSHConnectionWithPrivateKey(t *testing.T) {
	server := startServer(t)

	hostConfig := server.clientConfig()
	hostConfig.PrivateKeyPath = writeClientKey(t, server)

	client, err := NewClient(context.Background(), hostConfig)
	require.NoError(t, err)
	defer client.Close()
}

func TestSSHConnectionCancelled(t *testing.T) {
	server := startServer(t)

	hostConfig := server.clientConfig()
	hostConfig.Password = testPassword

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(ctx, hostConfig)
	require.Error(t, err)
}

func TestSSHConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	_, err = NewClient(context.Background(), &Config{
		User:     testUser,
		Host:     "127.0.0.1",
		Port:     port,
		Timeout:  time.Second,
		Password: testPassword,
	})
	require.Error(t, err)
}

func TestRunCommandOnLocalServer(t *testing.T) {
	client := connect(t, startServer(t))

	out, err := client.Run("echo HI, i am handled")
	require.NoError(t, err)
	require.Equal(t, "HI, i am handled\n", string(out))
}

func TestStreamLinesAndExitCode(t *testing.T) {
	server := startServer(t)
	client := connect(t, server)

	var lines []string
	code, err := client.Stream(context.Background(), "lines 3", func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, []string{"line 0", "line 1", "line 2"}, lines)

	lines = nil
	code, err = client.Stream(context.Background(), "exit 3", func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Equal(t, 3, code)
	require.Equal(t, []string{"exiting with 3"}, lines)

	require.Equal(t, []string{"lines 3", "exit 3"}, server.executedCommands())
}

func TestStreamCRLFAndUnterminatedLine(t *testing.T) {
	client := connect(t, startServer(t))

	var lines []string
	code, err := client.Stream(context.Background(), "raw a\r\nb", func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, []string{"a", "b"}, lines)
}

func TestStreamMissingExitStatus(t *testing.T) {
	client := connect(t, startServer(t))

	var lines []string
	_, err := client.Stream(context.Background(), "drop", func(line string) {
		lines = append(lines, line)
	})
	require.ErrorIs(t, err, session.ErrNoExitStatus)
	require.Equal(t, []string{"partial"}, lines)
}

func TestStreamCancel(t *testing.T) {
	client := connect(t, startServer(t))

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := client.Stream(ctx, "hang", func(line string) {
			close(started)
		})
		done <- err
	}()

	<-started
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not return after cancel")
	}
}

func TestUploadFileToLocalServer(t *testing.T) {
	client := connect(t, startServer(t))

	localPath := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(localPath, []byte("#!/bin/sh\necho ready\n"), 0o750))
	remotePath := filepath.Join(t.TempDir(), "setup.sh")

	require.NoError(t, client.Upload(localPath, remotePath))

	data, err := os.ReadFile(remotePath)
	require.NoError(t, err)
	require.Equal(t, "#!/bin/sh\necho ready\n", string(data))

	info, err := os.Stat(remotePath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o750), info.Mode().Perm())
}

func TestUploadMissingLocalFile(t *testing.T) {
	client := connect(t, startServer(t))

	err := client.Upload(filepath.Join(t.TempDir(), "missing"), "/tmp/missing")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDialerRunsSession(t *testing.T) {
	server := startServer(t)
	cfg := server.clientConfig()
	cfg.Password = testPassword

	host := inventory.Host{
		Type:       "v4",
		Name:       "v4-node-0",
		Zone:       "us-central2-b",
		IPAddress:  "10.0.0.2",
		ExternalIP: "127.0.0.1",
	}
	s := session.New(host, session.Config{
		Dialer:  &Dialer{Config: *cfg},
		Command: "echo hi",
	})

	out := s.Run(context.Background())
	require.Equal(t, session.Completed, out.State)
	require.Equal(t, 0, out.ExitCode)
	require.Equal(t, []string{"echo hi", "hi", session.ClosedLine}, out.Lines)
}

func TestDialerFailureFailsSession(t *testing.T) {
	server := startServer(t)
	cfg := server.clientConfig()
	cfg.Password = "wrong"

	host := inventory.Host{Type: "v4", Name: "v4-node-1", ExternalIP: "127.0.0.1"}
	out := session.New(host, session.Config{
		Dialer:  &Dialer{Config: *cfg},
		Command: "echo hi",
	}).Run(context.Background())

	require.Equal(t, session.Failed, out.State)
	require.Equal(t, 1, out.ExitCode)
	require.Contains(t, out.Reason(), "handshake")
}

func TestParseHostKeyPolicy(t *testing.T) {
	for _, p := range HostKeyPolicies {
		got, err := ParseHostKeyPolicy(string(p))
		require.NoError(t, err)
		require.Equal(t, p, got)
	}
	_, err := ParseHostKeyPolicy("yolo")
	require.Error(t, err)
}

func connect(t *testing.T, server *Server) *Client {
	t.Helper()
	cfg := server.clientConfig()
	cfg.Password = testPassword

	client, err := NewClient(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func writeClientKey(t *testing.T, server *Server) string {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	server.authorize(sshPub)

	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_test")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

// Server is an in-process SSH server. Exec requests understand a tiny
// command language:
//
//	echo <text>  print text, exit 0
//	exit <n>     print a line, exit n
//	lines <n>    print n lines, exit 0
//	raw <text>   print text verbatim, exit 0
//	drop         print a line and close without an exit status
//	hang         print a line and never exit
//
// The sftp subsystem serves the local filesystem.
type Server struct {
	listener net.Listener
	config   *ssh.ServerConfig
	hostKey  ssh.PublicKey

	mu             sync.Mutex
	commands       []string
	authorizedKeys []ssh.PublicKey
}

func startServer(t *testing.T) *Server {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	s := &Server{hostKey: hostSigner.PublicKey()}
	s.config = &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, fmt.Errorf("authentication failed")
		},
		PublicKeyCallback: func(c ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, k := range s.authorizedKeys {
				if c.User() == testUser && string(k.Marshal()) == string(key.Marshal()) {
					return nil, nil
				}
			}
			return nil, fmt.Errorf("public key rejected for %q", c.User())
		},
	}
	s.config.AddHostKey(hostSigner)

	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go s.acceptConnections()
	t.Cleanup(func() { s.listener.Close() })
	return s
}

func (s *Server) clientConfig() *Config {
	cfg := &Config{
		User:    testUser,
		Host:    "127.0.0.1",
		Port:    s.listener.Addr().(*net.TCPAddr).Port,
		Timeout: 5 * time.Second,
	}
	cfg.SetHostKeyCallback(ssh.FixedHostKey(s.hostKey))
	return cfg
}

func (s *Server) authorize(key ssh.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorizedKeys = append(s.authorizedKeys, key)
}

func (s *Server) executedCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}

		go s.handleChannel(channel, requests)
	}
}

func (s *Server) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				return
			}
			req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			go io.Copy(io.Discard, channel)
			s.exec(channel, payload.Command)
			return

		case "subsystem":
			var payload struct{ Name string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil || payload.Name != "sftp" {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)

			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			return

		default:
			req.Reply(false, nil)
		}
	}
}

func (s *Server) exec(channel ssh.Channel, command string) {
	verb, arg, _ := strings.Cut(command, " ")
	status := 0

	switch verb {
	case "echo":
		fmt.Fprintf(channel, "%s\n", arg)
	case "exit":
		status, _ = strconv.Atoi(arg)
		fmt.Fprintf(channel, "exiting with %d\n", status)
	case "lines":
		n, _ := strconv.Atoi(arg)
		for i := 0; i < n; i++ {
			fmt.Fprintf(channel, "line %d\n", i)
		}
	case "raw":
		fmt.Fprint(channel, arg)
	case "drop":
		fmt.Fprintln(channel, "partial")
		return
	case "hang":
		fmt.Fprintln(channel, "still running")
		select {}
	default:
		fmt.Fprintf(channel, "unknown command %q\n", command)
		status = 127
	}

	channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{uint32(status)}))
}
