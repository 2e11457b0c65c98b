//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dmg

import (
	"fmt"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
)

// FaultCommandFailed creates a fault for a command that reported an error.
func FaultCommandFailed(cmd, msg string, status int) *fault.Fault {
	return dmgFault(
		code.DmgCommandFailed,
		fmt.Sprintf("%q failed (status %d): %s", cmd, status, msg),
		"",
	)
}

// FaultBadResponse creates a fault for output that could not be decoded.
func FaultBadResponse(cmd string, err error) *fault.Fault {
	return dmgFault(
		code.DmgBadResponse,
		fmt.Sprintf("unexpected output from %q: %s", cmd, err),
		"verify that the installed dmg and daos tools match the harness version",
	)
}

// FaultVersionMismatch creates a fault for differing tool versions.
func FaultVersionMismatch(what, want, got string) *fault.Fault {
	return dmgFault(
		code.DmgVersionMismatch,
		fmt.Sprintf("%s version %q does not match %q", what, got, want),
		"install the same DAOS release on all servers and clients",
	)
}

func dmgFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("dmg", c, desc, res)
}
