//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package capacity

import (
	"fmt"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
)

// FaultNoNodes indicates that there was nothing to probe.
var FaultNoNodes = probeFault(
	code.ProbeNoNodes,
	"no nodes to probe",
	"list the server nodes in the harness config",
)

// FaultQueryFailed creates a fault for a node whose capacity query failed.
func FaultQueryFailed(host string, err error) *fault.Fault {
	return probeFault(
		code.ProbeQueryFailed,
		fmt.Sprintf("capacity query on %s failed: %s", host, err),
		fmt.Sprintf("verify that the engines on %s are running and reachable", host),
	)
}

// FaultMalformed creates a fault for a node that reported unusable data.
func FaultMalformed(host, reason string) *fault.Fault {
	return probeFault(
		code.ProbeMalformedOutput,
		fmt.Sprintf("malformed capacity data from %s: %s", host, reason),
		"",
	)
}

// FaultDeviceNotFound creates a fault for a configured device missing on a node.
func FaultDeviceNotFound(host, dev string) *fault.Fault {
	return probeFault(
		code.ProbeDeviceNotFound,
		fmt.Sprintf("device %s not found on %s", dev, host),
		"check the scm_list and bdev_list settings against the node hardware",
	)
}

// FaultCacheFailed creates a fault for an unusable capacity cache.
func FaultCacheFailed(path string, err error) *fault.Fault {
	return probeFault(
		code.ProbeCacheFailed,
		fmt.Sprintf("capacity cache %s: %s", path, err),
		"remove the cache file or run with the cache disabled",
	)
}

func probeFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("capacity", c, desc, res)
}
