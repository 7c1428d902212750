// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/vmware/tpurun/pkg/session"
)

func printLog(format string, v ...any) {
	if verbose {
		log.Printf(format, v...)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func currentUsername() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine current user, use --user: %w", err)
	}
	// strip the domain of DOMAIN\user logins
	if i := strings.LastIndexByte(u.Username, '\\'); i >= 0 {
		return u.Username[i+1:], nil
	}
	return u.Username, nil
}

// parseStageSpecs converts "local[:remote]" specs into files to upload. A
// missing remote path uploads to the file's base name in the remote
// user's home directory.
func parseStageSpecs(specs []string) ([]session.StageFile, error) {
	files := make([]session.StageFile, 0, len(specs))
	for _, spec := range specs {
		local, remote, _ := strings.Cut(spec, ":")
		if local == "" {
			return nil, fmt.Errorf("invalid --stage %q, expected local[:remote]", spec)
		}
		info, err := os.Stat(local)
		if err != nil {
			return nil, fmt.Errorf("invalid --stage %q: %w", spec, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("invalid --stage %q: %s is a directory", spec, local)
		}
		if remote == "" {
			remote = filepath.Base(local)
		}
		files = append(files, session.StageFile{LocalPath: local, RemotePath: remote})
	}
	return files, nil
}
