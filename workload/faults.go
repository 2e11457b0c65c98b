//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package workload

import (
	"fmt"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
)

// FaultWorkloadFailed creates a fault for a worker group whose run failed.
func FaultWorkloadFailed(group, reason string) *fault.Fault {
	return workloadFault(
		code.WorkloadFailure,
		fmt.Sprintf("workload group %s failed: %s", group, reason),
		"",
	)
}

// FaultBadBlockSize creates a fault for a block size that rounds to zero.
func FaultBadBlockSize(avail uint64, percent uint, workers, factor int, xfer uint64) *fault.Fault {
	return workloadFault(
		code.WorkloadBadBlockSize,
		fmt.Sprintf("block size is zero (avail=%d percent=%d workers=%d factor=%d xfer=%d)",
			avail, percent, workers, factor, xfer),
		"raise the fill percentage or lower the process count or transfer size",
	)
}

// FaultBadSpec creates a fault for an unusable workload description.
func FaultBadSpec(reason string) *fault.Fault {
	return workloadFault(
		code.WorkloadBadSpec,
		"invalid workload: "+reason,
		"",
	)
}

// FaultWarnings creates a fault for a run that emitted warnings.
func FaultWarnings(group string, warnings []string) *fault.Fault {
	return workloadFault(
		code.WorkloadWarnings,
		fmt.Sprintf("workload group %s reported %d warnings: %q", group, len(warnings), warnings),
		"",
	)
}

func workloadFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("workload", c, desc, res)
}
