//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package workload

import (
	"context"
	"fmt"
	"strings"

	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
)

// DefaultDfuseMount is where dfuse is mounted on client hosts.
const DefaultDfuseMount = "/tmp/dharness_dfuse"

// Dfuse mounts a container on client hosts for POSIX workloads.
type Dfuse struct {
	log      logging.Logger
	exec     remote.Executor
	Path     string
	MountDir string
}

// NewDfuse returns a Dfuse helper with default paths.
func NewDfuse(log logging.Logger, exec remote.Executor) *Dfuse {
	return &Dfuse{log: log, exec: exec, Path: "dfuse", MountDir: DefaultDfuseMount}
}

func (d *Dfuse) check(op string, results []*remote.Result, err error) error {
	if err != nil {
		return FaultWorkloadFailed("dfuse", fmt.Sprintf("%s: %s", op, err))
	}
	if failed := remote.Failed(results); len(failed) > 0 {
		var msgs []string
		for _, r := range failed {
			msgs = append(msgs, fmt.Sprintf("%s: exit %d: %s", r.Host, r.ExitStatus, strings.TrimSpace(r.Stderr)))
		}
		return FaultWorkloadFailed("dfuse", op+": "+strings.Join(msgs, "; "))
	}
	return nil
}

// Mount mounts the container on every host.
func (d *Dfuse) Mount(ctx context.Context, hosts []string, pool, cont string) error {
	cmd := fmt.Sprintf("mkdir -p %s && %s",
		remote.ShellQuote(d.MountDir),
		remote.JoinArgs(d.Path, "--mountpoint="+d.MountDir, "--pool="+pool, "--cont="+cont))

	d.log.Infof("dfuse: mounting %s/%s at %s on %d hosts", pool, cont, d.MountDir, len(hosts))
	results, err := remote.RunParallel(ctx, d.exec, hosts, cmd)
	return d.check("mount", results, err)
}

// Unmount unmounts dfuse from every host.
func (d *Dfuse) Unmount(ctx context.Context, hosts []string) error {
	dir := remote.ShellQuote(d.MountDir)
	cmd := fmt.Sprintf("fusermount3 -u %s || fusermount -u %s", dir, dir)

	d.log.Infof("dfuse: unmounting %s on %d hosts", d.MountDir, len(hosts))
	results, err := remote.RunParallel(ctx, d.exec, hosts, cmd)
	return d.check("unmount", results, err)
}

// TestFile returns the path of a file under the mount point.
func (d *Dfuse) TestFile(name string) string {
	return strings.TrimRight(d.MountDir, "/") + "/" + strings.TrimLeft(name, "/")
}
