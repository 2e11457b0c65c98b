//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/cmd/dharness/pretty"
	"github.com/daos-stack/dharness/lib/hostlist"
)

// capacityCmd probes the usable per-tier capacity of the server nodes.
type capacityCmd struct {
	logCmd
	ctxCmd
	cfgCmd
	runtimeCmd
	jsonOutputCmd
	HostList   string `short:"l" long:"host-list" description:"Hosts to probe (default: configured servers)"`
	Nodes      bool   `short:"n" long:"nodes" description:"Show the per-engine capacity of each node (never cached)"`
	Invalidate bool   `long:"invalidate" description:"Drop cached capacities before probing"`
}

type capacityResult struct {
	Fleet *capacity.FleetCapacity   `json:"fleet"`
	Nodes []*capacity.NodeCapacity `json:"nodes,omitempty"`
}

func (cmd *capacityCmd) hosts() ([]string, error) {
	if cmd.HostList == "" {
		return cmd.config.Servers, nil
	}
	hosts, err := hostlist.Expand(cmd.HostList)
	if err != nil {
		return nil, errors.Wrap(err, "--host-list")
	}
	return hosts, nil
}

func (cmd *capacityCmd) Execute(_ []string) error {
	hosts, err := cmd.hosts()
	if err != nil {
		return err
	}

	rt, err := cmd.buildRuntime(cmd.context(), cmd.log, cmd.config)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cmd.Invalidate {
		if rt.cache == nil {
			return errors.New("capacity cache is disabled in the harness config")
		}
		if err := rt.cache.Invalidate(); err != nil {
			return err
		}
		cmd.log.Infof("invalidated capacity cache %s", rt.cache.Path())
	}

	res, err := probeCapacity(cmd.context(), rt, hosts, cmd.Nodes)
	if err != nil {
		return err
	}
	if rt.metrics != nil {
		rt.metrics.RecordCapacity(res.Fleet)
	}

	if cmd.jsonOutputEnabled() {
		return cmd.outputJSON(res)
	}
	printCapacity(cmd.writer, res)
	return nil
}

// probeCapacity returns the fleet capacity of hosts. With nodes set the
// per-node capacities are probed and reduced directly.
func probeCapacity(ctx context.Context, rt *runtime, hosts []string, nodes bool) (*capacityResult, error) {
	if !nodes {
		fc, err := rt.prober.Probe(ctx, hosts)
		if err != nil {
			return nil, err
		}
		return &capacityResult{Fleet: fc}, nil
	}

	ncs, err := rt.prober.ProbeNodes(ctx, hosts)
	if err != nil {
		return nil, err
	}
	fc, err := capacity.Reduce(ncs, rt.cfg.Capacity.Margin)
	if err != nil {
		return nil, err
	}
	return &capacityResult{Fleet: fc, Nodes: ncs}, nil
}

func printCapacity(out io.Writer, res *capacityResult) {
	pretty.PrintFleetCapacity(out, res.Fleet, res.Nodes)
}
