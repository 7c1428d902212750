// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package plan

import "github.com/vmware/tpurun/pkg/session"

// Aggregate reduces per-host outcomes to an overall verdict. The execution
// succeeded iff every host completed with exit code 0; every other outcome
// counts as a failure.
func Aggregate(outcomes map[string]session.Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if !o.Success() {
			s.Failed++
		}
	}
	s.Success = s.Failed == 0
	return s
}
