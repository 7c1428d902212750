// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package inventory

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

const DefaultInventoryFilename = "tpus.json"

// ErrInvalidInventory wraps every validation failure of an inventory file.
var ErrInvalidInventory = errors.New("invalid inventory")

// LoadFile reads a JSON or YAML list of hosts from path and validates it.
func LoadFile(path string) ([]Host, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file failed: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an inventory document.
func Parse(data []byte) ([]Host, error) {
	var hosts []Host
	if err := yaml.Unmarshal(data, &hosts); err != nil {
		return nil, fmt.Errorf("%w: unmarshal failed: %v", ErrInvalidInventory, err)
	}

	seen := make(map[string]int, len(hosts))
	for i, h := range hosts {
		if err := validateHost(h); err != nil {
			return nil, fmt.Errorf("%w: host #%d: %w", ErrInvalidInventory, i, err)
		}
		if j, ok := seen[h.Name]; ok {
			return nil, fmt.Errorf("%w: host #%d: name %q already used by host #%d", ErrInvalidInventory, i, h.Name, j)
		}
		seen[h.Name] = i
	}
	return hosts, nil
}

func validateHost(h Host) error {
	fields := []struct {
		name, value string
	}{
		{"type", h.Type},
		{"name", h.Name},
		{"zone", h.Zone},
		{"ipAddress", h.IPAddress},
		{"externalIp", h.ExternalIP},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("missing field %q", f.name)
		}
	}

	c, err := ParseCategory(h.Type)
	if err != nil {
		return err
	}
	if !c.IsConcrete() {
		return fmt.Errorf("%w %q: hosts need a concrete type", ErrUnknownCategory, h.Type)
	}
	_, err = h.Number()
	return err
}
