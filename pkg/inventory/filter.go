// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package inventory

import (
	"errors"
	"fmt"
)

// ErrFilter is returned when node numbers are given without a concrete category.
var ErrFilter = errors.New("node numbers require an explicit category")

// Filter selects the hosts matching category and, when numbers is non-empty,
// whose node number is one of numbers. The result keeps the order of hosts.
//
// CategoryAll returns hosts unchanged. A host whose name cannot be parsed
// while filtering by number fails the whole call.
func Filter(hosts []Host, category Category, numbers []int) ([]Host, error) {
	if !category.IsConcrete() {
		if len(numbers) > 0 {
			return nil, ErrFilter
		}
		return hosts, nil
	}

	var wanted map[int]struct{}
	if len(numbers) > 0 {
		wanted = make(map[int]struct{}, len(numbers))
		for _, n := range numbers {
			wanted[n] = struct{}{}
		}
	}

	selected := make([]Host, 0, len(hosts))
	for _, h := range hosts {
		if h.Type != string(category) {
			continue
		}
		if wanted != nil {
			n, err := h.Number()
			if err != nil {
				return nil, fmt.Errorf("filter by node number: %w", err)
			}
			if _, ok := wanted[n]; !ok {
				continue
			}
		}
		selected = append(selected, h)
	}
	return selected, nil
}
