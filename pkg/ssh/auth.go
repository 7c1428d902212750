// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// defaultIdentityFiles are tried, in order, when neither a password nor a
// private key is configured.
var defaultIdentityFiles = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// Auth represents ssh auth methods.
type Auth []ssh.AuthMethod

// configureAuth collects every usable auth method: password, the explicit
// private key, the agent and, without an explicit key, the default identity
// files in ~/.ssh. The returned closer, if any, releases the agent
// connection opened for this config.
func configureAuth(config *Config) (Auth, io.Closer, error) {
	var auth Auth
	var closer io.Closer
	if config.Password != "" {
		auth = append(auth, Password(config.Password)...)
	}

	if config.PrivateKeyPath != "" {
		keyAuth, err := PrivateKey(config.PrivateKeyPath, config.PrivateKeyPassphrase)
		if err != nil {
			return nil, nil, err
		}
		auth = append(auth, keyAuth...)
	}

	if config.UseAgent {
		var agentAuth Auth
		if config.agent != nil {
			agentAuth = config.agent.auth()
		} else {
			agentAuth, closer = Agent()
		}
		auth = append(auth, agentAuth...)
	}

	if config.Password == "" && config.PrivateKeyPath == "" {
		if keyAuth := defaultIdentities(); keyAuth != nil {
			auth = append(auth, keyAuth...)
		}
	}

	if len(auth) == 0 {
		return nil, nil, fmt.Errorf("no private key/password found to configure SSH auth")
	}
	return auth, closer, nil
}

// Password returns password auth method.
func Password(pass string) Auth {
	return Auth{
		ssh.Password(pass),
	}
}

// PrivateKey returns auth method from private key with or without passphrase.
func PrivateKey(prvFile string, passphrase string) (Auth, error) {
	signer, err := getSigner(prvFile, passphrase)
	if err != nil {
		return nil, err
	}
	return Auth{
		ssh.PublicKeys(signer),
	}, nil
}

// Agent returns the ssh-agent auth method and the agent connection backing
// it, or nil and nil when no agent is reachable. The caller closes the
// connection once no more handshakes need the agent.
func Agent() (Auth, io.Closer) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, nil
	}
	return Auth{
		ssh.PublicKeysCallback(agent.NewClient(conn).Signers),
	}, conn
}

// sharedAgent lets every connection of a Dialer sign through a single
// agent connection.
type sharedAgent struct {
	once    sync.Once
	mu      sync.Mutex
	signers Auth
	conn    io.Closer
	closed  bool
}

func (a *sharedAgent) auth() Auth {
	a.once.Do(func() {
		auth, conn := Agent()
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.closed {
			if conn != nil {
				conn.Close()
			}
			return
		}
		a.signers, a.conn = auth, conn
	})
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signers
}

func (a *sharedAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn, a.signers = nil, nil
	return err
}

// defaultIdentities loads the unencrypted default keys found in ~/.ssh.
func defaultIdentities() Auth {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var signers []ssh.Signer
	for _, name := range defaultIdentityFiles {
		signer, err := getSigner(filepath.Join(home, ".ssh", name), "")
		if err != nil {
			continue
		}
		signers = append(signers, signer)
	}
	if len(signers) == 0 {
		return nil
	}
	return Auth{
		ssh.PublicKeys(signers...),
	}
}

// getSigner returns ssh signer from private key file.
func getSigner(prvFile string, passphrase string) (ssh.Signer, error) {
	var (
		err    error
		signer ssh.Signer
	)
	privateKey, err := os.ReadFile(prvFile)
	if err != nil {
		return nil, fmt.Errorf("could not read private key: %w", err)
	}
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(privateKey)
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("private key %s is passphrase protected: %w", prvFile, err)
	}
	return signer, err
}
