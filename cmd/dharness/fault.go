//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/cmd/dharness/pretty"
	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/hostlist"
	"github.com/daos-stack/dharness/lib/ranklist"
)

type faultCmd struct {
	Devices faultDevicesCmd `command:"devices" alias:"d" description:"List the storage devices of server hosts"`
	Inject  faultInjectCmd  `command:"inject" alias:"i" description:"Fault devices or stop a rank as in the configured fault plan"`
}

type faultHostsCmd struct {
	HostList string `short:"l" long:"host-list" description:"Server hosts (default: configured servers)"`
}

func (cmd *faultHostsCmd) hosts(servers []string) ([]string, error) {
	if cmd.HostList == "" {
		return servers, nil
	}
	hosts, err := hostlist.Expand(cmd.HostList)
	if err != nil {
		return nil, errors.Wrap(err, "--host-list")
	}
	return hosts, nil
}

// faultDevicesCmd lists the devices the injector would choose from.
type faultDevicesCmd struct {
	logCmd
	ctxCmd
	cfgCmd
	runtimeCmd
	jsonOutputCmd
	faultHostsCmd
}

func listDevices(ctx context.Context, rt *runtime, hosts []string) ([]*dmg.Device, error) {
	var all []*dmg.Device
	for _, host := range hosts {
		devs, err := rt.cluster.ListDevices(ctx, host)
		if err != nil {
			return nil, errors.Wrapf(err, "listing devices on %s", host)
		}
		for _, d := range devs {
			if d.Host == "" {
				d.Host = host
			}
		}
		all = append(all, devs...)
	}
	return all, nil
}

func (cmd *faultDevicesCmd) Execute(_ []string) error {
	hosts, err := cmd.hosts(cmd.config.Servers)
	if err != nil {
		return err
	}
	rt, err := cmd.buildRuntime(cmd.context(), cmd.log, cmd.config)
	if err != nil {
		return err
	}
	defer rt.Close()

	devs, err := listDevices(cmd.context(), rt, hosts)
	if err != nil {
		return err
	}
	if cmd.jsonOutputEnabled() {
		return cmd.outputJSON(devs)
	}
	pretty.PrintDevices(cmd.writer, devs)
	return nil
}

// faultInjectCmd runs a fault plan outside of a workload. Flags override
// the plan in the harness config.
type faultInjectCmd struct {
	logCmd
	ctxCmd
	cfgCmd
	runtimeCmd
	jsonOutputCmd
	faultHostsCmd
	Nodes          int           `short:"n" long:"nodes" description:"Number of server hosts to fault devices on"`
	Devices        int           `short:"D" long:"devices" description:"Number of devices to fault per host"`
	Rank           string        `short:"r" long:"rank" description:"Rank to stop after the devices are faulted"`
	Pool           string        `short:"p" long:"pool" description:"Pool whose rebuild is awaited after each fault"`
	RebuildTimeout time.Duration `long:"rebuild-timeout" description:"Bound on each rebuild wait"`
	DryRun         bool          `long:"dry-run" description:"Show the devices that would be faulted"`
}

func (cmd *faultInjectCmd) plan() (*faultinject.Plan, error) {
	plan := cmd.config.Faults
	if cmd.Nodes > 0 {
		plan.Nodes = cmd.Nodes
	}
	if cmd.Devices > 0 {
		plan.DevicesPerNode = cmd.Devices
	}
	if cmd.Rank != "" {
		rank, err := ranklist.ParseRank(cmd.Rank)
		if err != nil {
			return nil, errors.Wrap(err, "--rank")
		}
		plan.Rank = &rank
	}
	if cmd.RebuildTimeout > 0 {
		plan.RebuildTimeout = cmd.RebuildTimeout
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Empty() {
		return nil, faultinject.FaultBadPlan("nothing to fault; set --nodes and --devices or --rank")
	}
	return &plan, nil
}

func (cmd *faultInjectCmd) Execute(_ []string) error {
	plan, err := cmd.plan()
	if err != nil {
		return err
	}
	hosts, err := cmd.hosts(cmd.config.Servers)
	if err != nil {
		return err
	}

	ctx := cmd.context()
	rt, err := cmd.buildRuntime(ctx, cmd.log, cmd.config)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cmd.DryRun {
		devs, err := rt.injector.SelectDevices(ctx, plan, hosts)
		if err != nil {
			return err
		}
		if cmd.jsonOutputEnabled() {
			return cmd.outputJSON(devs)
		}
		pretty.PrintDevices(cmd.writer, devs)
		return nil
	}

	cmd.log.Noticef("injecting faults: %s", plan)
	if err := rt.injector.Inject(ctx, plan, &faultinject.Target{Hosts: hosts, Pool: cmd.Pool}); err != nil {
		return err
	}
	cmd.log.Noticef("fault plan completed")
	if rt.metrics != nil && cmd.config.Metrics.TextFile != "" {
		return rt.metrics.WriteTextFile(cmd.config.Metrics.TextFile)
	}
	return nil
}
