// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy selects how server host keys are verified.
type HostKeyPolicy string

const (
	// HostKeyIgnore accepts any host key. TPU VMs are routinely recreated
	// with fresh keys under the same address.
	HostKeyIgnore HostKeyPolicy = "ignore"
	// HostKeyStrict only accepts keys already present in known_hosts.
	HostKeyStrict HostKeyPolicy = "strict"
	// HostKeyAcceptNew records unknown keys and rejects changed ones.
	HostKeyAcceptNew HostKeyPolicy = "accept-new"
)

// HostKeyPolicies lists the accepted policy names.
var HostKeyPolicies = []HostKeyPolicy{HostKeyIgnore, HostKeyStrict, HostKeyAcceptNew}

// ParseHostKeyPolicy validates a policy name.
func ParseHostKeyPolicy(s string) (HostKeyPolicy, error) {
	for _, p := range HostKeyPolicies {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid host key policy %q, valid policies are: %v", s, HostKeyPolicies)
}

// DefaultKnownHosts returns host key callback from default known hosts path, and error if any.
func DefaultKnownHosts() (ssh.HostKeyCallback, error) {
	path, err := DefaultKnownHostsPath()
	if err != nil {
		return nil, err
	}

	return knownhosts.New(path)
}

// DefaultKnownHostsPath returns default user knows hosts file.
func DefaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(home, ".ssh", "known_hosts"), nil
}

// configureHostKeyCallback returns the callback for config's policy. A
// callback set with SetHostKeyCallback takes precedence.
func configureHostKeyCallback(config *Config) (ssh.HostKeyCallback, error) {
	if config.hostKeyCallBack != nil {
		return config.hostKeyCallBack, nil
	}

	path := config.KnownHostsPath
	if path == "" && config.HostKeyPolicy != HostKeyIgnore && config.HostKeyPolicy != "" {
		var err error
		if path, err = DefaultKnownHostsPath(); err != nil {
			return nil, err
		}
	}

	switch config.HostKeyPolicy {
	case HostKeyIgnore, "":
		return ssh.InsecureIgnoreHostKey(), nil
	case HostKeyStrict:
		return knownhosts.New(path)
	case HostKeyAcceptNew:
		return AcceptNewHostKeyCallback(path, config.logger())
	default:
		return nil, fmt.Errorf("invalid host key policy %q", config.HostKeyPolicy)
	}
}
