//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package remote

import (
	"fmt"
	"strings"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
)

// FaultConnectFailed creates a fault for an unreachable host.
func FaultConnectFailed(host string, err error) *fault.Fault {
	return remoteFault(
		code.RemoteConnectFailed,
		fmt.Sprintf("unable to connect to %s: %s", host, err),
		fmt.Sprintf("verify that %s is up and reachable over ssh from this node", host),
	)
}

// FaultBadAuth creates a fault for unusable SSH credentials.
func FaultBadAuth(reason string) *fault.Fault {
	return remoteFault(
		code.RemoteBadAuth,
		"invalid ssh credentials: "+reason,
		"configure a readable private key or password in the ssh section of the harness config",
	)
}

// FaultCommandFailed creates a fault for a command that exited non-zero.
func FaultCommandFailed(res *Result) *fault.Fault {
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	if len(detail) > 512 {
		detail = detail[:512] + "..."
	}
	return remoteFault(
		code.RemoteCommandFailed,
		fmt.Sprintf("%s: %q exited %d: %s", res.Host, res.Command, res.ExitStatus, detail),
		"",
	)
}

func remoteFault(c code.Code, desc, res string) *fault.Fault {
	return fault.New("remote", c, desc, res)
}
