// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// knownHostsMu serialises known_hosts updates from concurrent connections.
var knownHostsMu sync.Mutex

// ErrHostKeyChanged is returned when a host presents a key different from
// the one recorded in known_hosts.
var ErrHostKeyChanged = errors.New("host key does not match known_hosts, possible man-in-the-middle attack")

// AcceptNewHostKeyCallback creates a host key callback that trusts hosts on
// first use: unknown host keys are appended to known_hosts, keys that
// contradict an existing entry are rejected.
//
// This callback is idempotent - if a host key is already in known_hosts,
// it will be validated without modifying the file.
func AcceptNewHostKeyCallback(knownHostsPath string, logger *slog.Logger) (ssh.HostKeyCallback, error) {
	// Create known_hosts file if it doesn't exist
	if err := ensureKnownHostsFile(knownHostsPath); err != nil {
		return nil, fmt.Errorf("failed to ensure known_hosts file exists: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		knownHostsMu.Lock()
		defer knownHostsMu.Unlock()

		// Re-read the file on every attempt so keys added by other
		// connections are seen.
		currentKnownHostsCallback, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return fmt.Errorf("failed to read known_hosts: %w", err)
		}

		// Create a version of the hostname that includes the port, for consistent lookup
		lookupHostname := hostname
		if tcpAddr, ok := remote.(*net.TCPAddr); ok {
			if !strings.Contains(hostname, ":") {
				lookupHostname = net.JoinHostPort(hostname, fmt.Sprint(tcpAddr.Port))
			}
		}

		err = currentKnownHostsCallback(lookupHostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return fmt.Errorf("%s (%s key fingerprint %s): %w", hostname, key.Type(), getHostKeyFingerprint(key), ErrHostKeyChanged)
		}

		if err := addHostKeyToKnownHosts(hostname, remote, key, knownHostsPath); err != nil {
			return fmt.Errorf("failed to add host key to known_hosts: %w", err)
		}
		logger.Warn("permanently added host to the list of known hosts",
			"host", hostname, "key_type", key.Type(), "fingerprint", getHostKeyFingerprint(key))
		return nil
	}, nil
}

// getHostKeyFingerprint returns the SHA256 fingerprint of the host key
// in the format used by OpenSSH (SHA256:...).
func getHostKeyFingerprint(key ssh.PublicKey) string {
	hash := sha256.Sum256(key.Marshal())
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(hash[:])
}

// addHostKeyToKnownHosts adds a host key to the known_hosts file.
func addHostKeyToKnownHosts(hostname string, remote net.Addr, key ssh.PublicKey, knownHostsPath string) error {
	file, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts file: %w", err)
	}
	defer file.Close()

	addresses := []string{hostname}
	// If remote is a TCP address, add its IP string to ensure lookup by IP also works.
	if tcpAddr, ok := remote.(*net.TCPAddr); ok {
		ip := tcpAddr.IP.String()
		if tcpAddr.Port != 22 {
			ip = net.JoinHostPort(ip, fmt.Sprint(tcpAddr.Port))
		}
		if ip != hostname {
			addresses = append(addresses, ip)
		}
	}

	entry := knownhosts.Line(addresses, key)

	// knownhosts.Line doesn't include newline, so add it
	if _, err := file.WriteString(entry + "\n"); err != nil {
		return fmt.Errorf("failed to write to known_hosts file: %w", err)
	}

	return nil
}

// ensureKnownHostsFile ensures the known_hosts file and its directory exist.
func ensureKnownHostsFile(knownHostsPath string) error {
	dir := filepath.Dir(knownHostsPath)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create .ssh directory: %w", err)
	}

	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		file, err := os.OpenFile(knownHostsPath, os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("failed to create known_hosts file: %w", err)
		}
		file.Close()
	}

	return nil
}
