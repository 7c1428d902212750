// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package commands

import (
	"github.com/spf13/cobra"
)

const (
	cliName        = "tpurun"
	cliDescription = "A tool to run a shell command on many TPU VMs at once over SSH"

	// appTitle names the dashboard and, lower-cased, the log file.
	appTitle = "TPUrun"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:          cliName,
		Short:        cliDescription,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		NewCommandVersion(),
		NewCommandExecute(),
	)
}

func RootCmd() *cobra.Command {
	return rootCmd
}
