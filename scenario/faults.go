//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"fmt"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
)

// FaultNotFound creates a fault for an unknown scenario name or tag.
func FaultNotFound(name string) *fault.Fault {
	return scenarioFault(
		code.ScenarioNotFound,
		fmt.Sprintf("no scenario or tag named %q", name),
		"run 'dharness list' to show the available scenarios",
	)
}

// FaultDuplicate creates a fault for a scenario registered twice.
func FaultDuplicate(name string) *fault.Fault {
	return scenarioFault(
		code.ScenarioDuplicate,
		fmt.Sprintf("scenario %q already registered", name),
		"",
	)
}

// FaultCheckFailed creates a fault for a failed scenario assertion.
func FaultCheckFailed(format string, args ...interface{}) *fault.Fault {
	return scenarioFault(
		code.ScenarioCheckFailed,
		fmt.Sprintf(format, args...),
		"",
	)
}

// FaultSkipped creates a fault for a scenario that cannot run against the
// configured cluster.
func FaultSkipped(reason string) *fault.Fault {
	return scenarioFault(
		code.ScenarioSkipped,
		"skipped: "+reason,
		"",
	)
}

func scenarioFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("scenario", c, desc, res)
}
