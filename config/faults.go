//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package config

import (
	"fmt"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
)

var (
	// FaultConfigNoPath indicates that no configuration file was found.
	FaultConfigNoPath = configFault(
		code.ConfigBadPath,
		"harness configuration file path not set",
		"supply the path to a harness configuration file with the '-o' option",
	)
	// FaultConfigNoServers indicates that no server nodes were configured.
	FaultConfigNoServers = configFault(
		code.ConfigNoServers,
		"no server nodes in configuration",
		"list the DAOS server nodes with the 'servers' parameter",
	)
)

// FaultConfigBadHostList creates a fault for an unparseable host range.
func FaultConfigBadHostList(param string, err error) *fault.Fault {
	return configFault(
		code.ConfigBadHostList,
		fmt.Sprintf("invalid host list in %q: %s", param, err),
		"use comma separated hostnames or ranges like 'wolf-[1-4]'",
	)
}

// FaultConfigBadSize creates a fault for an unparseable size.
func FaultConfigBadSize(in string, err error) *fault.Fault {
	return configFault(
		code.ConfigBadSize,
		fmt.Sprintf("invalid size %q: %s", in, err),
		"use a byte count or a humanized size like '16MiB'",
	)
}

// FaultConfigBadMargin creates a fault for a capacity margin outside (0,1].
func FaultConfigBadMargin(margin float64) *fault.Fault {
	return configFault(
		code.ConfigBadMargin,
		fmt.Sprintf("invalid capacity margin %g", margin),
		"set 'capacity.margin' to a value greater than 0 and at most 1",
	)
}

// FaultConfigBadFaultPlan creates a fault for an unusable fault plan.
func FaultConfigBadFaultPlan(err error) *fault.Fault {
	return configFault(
		code.ConfigBadFaultPlan,
		fmt.Sprintf("invalid fault plan: %s", err),
		"fix the 'faults' section of the harness configuration",
	)
}

// FaultConfigInvalid creates a generic configuration fault.
func FaultConfigInvalid(reason string) *fault.Fault {
	return configFault(code.ConfigUnknown, "invalid configuration: "+reason, "")
}

func configFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("config", c, desc, res)
}
