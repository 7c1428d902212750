// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrMalformedHostName is returned when a host name does not carry a
	// "<type>-node-<N>" numeric suffix.
	ErrMalformedHostName = errors.New("malformed host name")

	// ErrUnknownCategory is returned by ParseCategory for names outside the
	// known set of node types.
	ErrUnknownCategory = errors.New("unknown host category")
)

// Category is a TPU VM node type.
type Category string

const (
	CategoryV2    Category = "v2"
	CategoryV3    Category = "v3"
	CategoryV4    Category = "v4"
	CategoryV2Pod Category = "v2_pod"
	CategoryV3Pod Category = "v3_pod"
	CategoryV4Pod Category = "v4_pod"

	// CategoryAll disables category filtering.
	CategoryAll Category = "all"
)

var categories = []Category{
	CategoryV2,
	CategoryV3,
	CategoryV4,
	CategoryV2Pod,
	CategoryV3Pod,
	CategoryV4Pod,
	CategoryAll,
}

// Categories returns every accepted category name, CategoryAll last.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// ParseCategory converts a user supplied name into a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q, valid categories are: %v", ErrUnknownCategory, s, categories)
}

// IsConcrete reports whether c names an actual node type rather than the
// "no filter" sentinel.
func (c Category) IsConcrete() bool {
	return c != CategoryAll && c != ""
}

// Host is one managed TPU VM.
type Host struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Zone       string `json:"zone"`
	IPAddress  string `json:"ipAddress"`
	ExternalIP string `json:"externalIp"`
}

// Number returns N for a host named "<type>-node-<N>".
func (h Host) Number() (int, error) {
	prefix := h.Type + "-node-"
	suffix, ok := strings.CutPrefix(h.Name, prefix)
	if !ok || suffix == "" {
		return 0, fmt.Errorf("%w %q: expected %q prefix", ErrMalformedHostName, h.Name, prefix)
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w %q: %q is not a node number", ErrMalformedHostName, h.Name, suffix)
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrMalformedHostName, h.Name, err)
	}
	return n, nil
}

func (h Host) String() string {
	return fmt.Sprintf("%s (%s)", h.Name, h.ExternalIP)
}
