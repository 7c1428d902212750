// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmitDelivers(t *testing.T) {
	ch := make(chan Event, 1)
	Emitter(ch).Emit(context.Background(), OutputLine{Host: "v4-node-0", Text: "hi"})
	require.Equal(t, OutputLine{Host: "v4-node-0", Text: "hi"}, <-ch)
}

func TestEmitNilDiscards(t *testing.T) {
	var em Emitter
	em.Emit(context.Background(), StatusChanged{Host: "h"})
}

func TestEmitDoesNotBlockAfterCancel(t *testing.T) {
	ch := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		Emitter(ch).Emit(ctx, StatusChanged{Host: "h", Message: "stuck"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a cancelled context")
	}
}

func TestSeverityString(t *testing.T) {
	require.Equal(t, "info", SeverityInfo.String())
	require.Equal(t, "success", SeveritySuccess.String())
	require.Equal(t, "warning", SeverityWarning.String())
	require.Equal(t, "error", SeverityError.String())
}
