// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
)

// newSftp returns new sftp client and error if any.
func (c Client) newSftp(opts ...sftp.ClientOption) (*sftp.Client, error) {
	return sftp.NewClient(c.Client, opts...)
}

// makeTempPath generates temporary file location
func makeTempPath(basePath string) string {
	return path.Join("/tmp", fmt.Sprintf("tpurun_%d_%s", time.Now().UnixNano(), path.Base(basePath)))
}

// Upload a local file to remote server!
// The remote file gets the local file's permissions. When the destination is
// not writable by the login user, the file is staged in /tmp and moved into
// place with sudo.
func (c Client) Upload(localPath string, remotePath string) (err error) {
	local, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer local.Close()

	// Stat to retrieve local file permissions
	localFileInfo, err := local.Stat()
	if err != nil {
		return err
	}

	if err := c.sftpUpload(local, remotePath, localFileInfo.Mode()); err != nil {
		if isPermissionDenied(err) {
			return c.sudoUpload(local, remotePath, localFileInfo)
		}
		return err
	}

	return nil
}

func (c Client) sftpUpload(local *os.File, remotePath string, mode os.FileMode) error {
	// Reset file pointer
	if _, err := local.Seek(0, io.SeekStart); err != nil {
		return err
	}

	ftp, err := c.newSftp()
	if err != nil {
		return err
	}
	defer ftp.Close()

	remote, err := ftp.Create(remotePath)
	if err != nil {
		return err
	}
	defer remote.Close()
	if _, err = io.Copy(remote, local); err != nil {
		return err
	}

	// Set remote file mode to match local file permissions
	return remote.Chmod(mode.Perm())
}

func (c Client) sudoUpload(local *os.File, remotePath string, info os.FileInfo) error {
	tempPath := makeTempPath(remotePath)

	if err := c.sftpUpload(local, tempPath, info.Mode()); err != nil {
		return fmt.Errorf("failed to upload to temp path %s: %w", tempPath, err)
	}
	// ensure temporary file is cleaned up
	defer c.Run(fmt.Sprintf("sudo -n rm -f %s", tempPath))

	if out, err := c.Run(fmt.Sprintf("sudo -n mv %s %s", tempPath, remotePath)); err != nil {
		return fmt.Errorf("failed to sudo mv from %s to %s: %w: %s", tempPath, remotePath, err, strings.TrimSpace(string(out)))
	}

	if out, err := c.Run(fmt.Sprintf("sudo -n chmod %o %s", info.Mode().Perm(), remotePath)); err != nil {
		return fmt.Errorf("failed to sudo chmod on %s: %w: %s", remotePath, err, strings.TrimSpace(string(out)))
	}

	return nil
}

func isPermissionDenied(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == uint32(sftp.ErrSshFxPermissionDenied) {
			return true
		}
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "permission denied") || strings.Contains(errMsg, "ssh_fx_permission_denied")
}
