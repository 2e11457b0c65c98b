//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package faultinject

import (
	"fmt"
	"time"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
	"github.com/daos-stack/dharness/lib/ranklist"
)

// FaultNotEvicted creates a DeviceFaultError for a device that never
// reported the EVICTED state after being marked faulty.
func FaultNotEvicted(host, devUUID, lastState string, timeout time.Duration) *fault.Fault {
	return deviceFault(
		code.DeviceFaultNotEvicted,
		fmt.Sprintf("device %s on %s not EVICTED after %s (last state %q)", devUUID, host, timeout, lastState),
		"check the engine logs on the host for the device state transition",
	)
}

// FaultSetFailed creates a DeviceFaultError for a rejected set-faulty request.
func FaultSetFailed(host, devUUID string, err error) *fault.Fault {
	return deviceFault(
		code.DeviceFaultSetFailed,
		fmt.Sprintf("marking device %s on %s faulty failed: %s", devUUID, host, err),
		"",
	)
}

// FaultHealthQueryFailed creates a DeviceFaultError for a device whose
// health could not be read while waiting for it to be EVICTED.
func FaultHealthQueryFailed(host, devUUID string, err error) *fault.Fault {
	return deviceFault(
		code.DeviceFaultHealthQueryFailed,
		fmt.Sprintf("querying health of device %s on %s: %s", devUUID, host, err),
		"",
	)
}

// FaultInsufficientDevices creates a fault for a host with fewer devices
// than the plan requires.
func FaultInsufficientDevices(host string, want, have int) *fault.Fault {
	return deviceFault(
		code.DeviceFaultInsufficientDevices,
		fmt.Sprintf("host %s has %d usable devices, plan requires %d", host, have, want),
		"lower devices_per_node in the fault plan",
	)
}

// FaultDeviceBusy creates a fault for a device already claimed by another
// injection sequence.
func FaultDeviceBusy(host, devUUID string) *fault.Fault {
	return deviceFault(
		code.DeviceFaultDeviceBusy,
		fmt.Sprintf("device %s on %s is claimed by another fault sequence", devUUID, host),
		"wait for the other harness run to finish",
	)
}

// FaultRankStopFailed creates a fault for a rank that could not be stopped.
func FaultRankStopFailed(rank ranklist.Rank, err error) *fault.Fault {
	return deviceFault(
		code.DeviceFaultRankStopFailed,
		fmt.Sprintf("stopping rank %s failed: %s", rank, err),
		"",
	)
}

// FaultRebuildTimeout creates a RebuildTimeoutError for a rebuild that did
// not return to idle.
func FaultRebuildTimeout(pool string, timeout time.Duration) *fault.Fault {
	return rebuildFault(
		code.RebuildTimeout,
		fmt.Sprintf("rebuild of pool %s still busy after %s", pool, timeout),
		"raise rebuild_timeout or inspect the pool rebuild status",
	)
}

// FaultRebuildStartTimeout creates a RebuildTimeoutError for a rebuild
// that never started.
func FaultRebuildStartTimeout(pool string, timeout time.Duration) *fault.Fault {
	return rebuildFault(
		code.RebuildStartTimeout,
		fmt.Sprintf("rebuild of pool %s did not start within %s", pool, timeout),
		"set skip_rebuild_start for faults whose rebuild may finish before the first poll",
	)
}

// FaultRebuildQueryFailed creates a fault for a failed rebuild state query.
func FaultRebuildQueryFailed(pool string, err error) *fault.Fault {
	return rebuildFault(
		code.RebuildQueryFailed,
		fmt.Sprintf("querying rebuild state of pool %s: %s", pool, err),
		"",
	)
}

// FaultBadPlan creates a fault for an unusable fault plan.
func FaultBadPlan(reason string) *fault.Fault {
	return fault.New("config", code.ConfigBadFaultPlan, "invalid fault plan: "+reason, "")
}

func deviceFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("faultinject", c, desc, res)
}

func rebuildFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("rebuild", c, desc, res)
}
