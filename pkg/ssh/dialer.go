// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package ssh

import (
	"context"

	"github.com/vmware/tpurun/pkg/inventory"
	"github.com/vmware/tpurun/pkg/session"
)

// Dialer opens SSH connections to inventory hosts. Every host shares the
// same credentials and connection parameters; only the address differs.
type Dialer struct {
	Config Config

	agent sharedAgent
}

// Dial connects to host's external address.
func (d *Dialer) Dial(ctx context.Context, host inventory.Host) (session.Conn, error) {
	cfg := d.Config
	cfg.Host = host.ExternalIP
	cfg.Logger = cfg.logger().With("host", host.Name)
	cfg.agent = &d.agent

	client, err := NewClient(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Close releases the agent connection shared by every dialled client.
func (d *Dialer) Close() error {
	return d.agent.Close()
}

var (
	_ session.Dialer   = (*Dialer)(nil)
	_ session.Conn     = Client{}
	_ session.Uploader = Client{}
)
