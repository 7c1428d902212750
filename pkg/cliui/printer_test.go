// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package cliui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmware/tpurun/pkg/event"
	"github.com/vmware/tpurun/pkg/inventory"
)

func TestPrinterRun(t *testing.T) {
	hosts := []inventory.Host{{Name: "v4-node-0"}, {Name: "v4-node-10"}}
	var buf bytes.Buffer
	p := NewPrinter(&buf, hosts, false)

	events := make(chan event.Event, 8)
	events <- event.StatusChanged{Host: "v4-node-0", Message: "Connected", Severity: event.SeveritySuccess}
	events <- event.OutputLine{Host: "v4-node-0", Text: "echo hi"}
	events <- event.OutputLine{Host: "v4-node-10", Text: "hi"}
	events <- event.ExecutionFinished{Failed: 1, Total: 2, LogPath: "tpurun.log"}
	close(events)

	result, ok := p.Run(events)
	require.True(t, ok)
	require.Equal(t, 1, result.Failed)
	require.Equal(t,
		"[v4-node-0 ] Connected\n"+
			"v4-node-0    | echo hi\n"+
			"v4-node-10   | hi\n"+
			"Command failed on 1/2 VMs! Logs saved.\n"+
			"Logs saved to tpurun.log\n",
		buf.String())
}

func TestPrinterRunWithoutFinish(t *testing.T) {
	events := make(chan event.Event)
	close(events)
	_, ok := NewPrinter(&bytes.Buffer{}, nil, false).Run(events)
	require.False(t, ok)
}

func TestPrinterSaveError(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, nil, false).Print(event.ExecutionFinished{
		Failed:  1,
		Total:   1,
		LogPath: "/ro/tpurun.log",
		LogErr:  errors.New("read-only file system"),
	})
	require.Equal(t,
		"Command failed on 1/1 VMs! Saving logs failed.\n"+
			"Failed to save logs to /ro/tpurun.log: read-only file system\n",
		buf.String())
}
