//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package remote

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/logging"
)

// LocalExecutor runs every command on the local node through the shell,
// regardless of the requested host. It serves single-node setups and tests.
type LocalExecutor struct {
	log   logging.Logger
	Shell string
}

// NewLocalExecutor returns a LocalExecutor using /bin/bash.
func NewLocalExecutor(log logging.Logger) *LocalExecutor {
	return &LocalExecutor{log: log, Shell: "/bin/bash"}
}

// Exec runs cmd locally.
func (e *LocalExecutor) Exec(ctx context.Context, host, cmd string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, e.Shell, "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr

	e.log.Tracef("local (%s): %s", host, cmd)
	start := time.Now()
	err := c.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	res := &Result{
		Host:    host,
		Command: cmd,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitStatus = exitErr.ExitCode()
	default:
		return nil, errors.Wrapf(err, "running %q", cmd)
	}

	return res, nil
}
