//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/workload"
)

const fillName = "fill"

// RegisterFill registers the server fill scenario.
func RegisterFill(r *Registry) error {
	return r.Add(&Scenario{
		Name: fillName,
		Description: "create a pool at the fleet's maximum capacity and fill it with IOR " +
			"while devices or ranks are faulted",
		Tags: []string{"fill", "rebuild", "nvme", "scm"},
		Run:  runFill,
	})
}

// fillSpec returns the write spec for the fill, applying the scenario's
// percent and storage parameters.
func fillSpec(env *Env) (*workload.Spec, error) {
	spec := env.Config.Spec
	spec.Operation = workload.OpWrite

	if raw := env.param(fillName, "percent", ""); raw != "" {
		pct, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, config.FaultConfigInvalid(fmt.Sprintf("scenarios.fill.percent: %s", err))
		}
		spec.FillPercent = uint(pct)
	}
	if raw := env.param(fillName, "storage", ""); raw != "" {
		tier, err := workload.ParseTier(raw)
		if err != nil {
			return nil, config.FaultConfigInvalid(fmt.Sprintf("scenarios.fill.storage: %s", err))
		}
		spec.Tier = tier
	}
	return &spec, spec.Validate()
}

// fillPoolRequest sizes the pool. A configured percentage size wins;
// otherwise unset tier sizes are taken from the fleet capacity.
func fillPoolRequest(pc config.PoolConfig, tier workload.Tier, fc *capacity.FleetCapacity, label string) (*dmg.PoolCreateReq, error) {
	req := &dmg.PoolCreateReq{
		Label:     label,
		Size:      pc.Size,
		ScmBytes:  pc.ScmSize.Bytes(),
		NvmeBytes: pc.NvmeSize.Bytes(),
	}
	if req.Size != "" {
		return req, nil
	}

	if req.ScmBytes == 0 {
		req.ScmBytes = fc.Tier0
	}
	if tier == workload.TierNVMe && req.NvmeBytes == 0 {
		req.NvmeBytes = fc.Tier1
	}

	switch {
	case req.ScmBytes == 0:
		return nil, FaultCheckFailed("no SCM capacity available for the pool (%s)", fc)
	case tier == workload.TierNVMe && req.NvmeBytes == 0:
		return nil, FaultCheckFailed("no NVMe capacity available for the pool (%s)", fc)
	}
	return req, nil
}

func runFill(ctx context.Context, env *Env, out *Outcome) error {
	groups, err := groupsOrSkip(env)
	if err != nil {
		return err
	}
	spec, err := fillSpec(env)
	if err != nil {
		return err
	}
	readBack, err := env.boolParam(fillName, "read_back", true)
	if err != nil {
		return err
	}

	fc, err := env.Prober.Probe(ctx, env.Config.Servers)
	if err != nil {
		return errors.Wrap(err, "probing capacity")
	}
	env.recordCapacity(fc)
	out.Notef("fleet capacity: %s", fc)

	req, err := fillPoolRequest(env.Config.Pool, spec.Tier, fc, env.label("fill"))
	if err != nil {
		return err
	}
	out.Notef("pool %s: scm=%s nvme=%s size=%q", req.Label,
		humanize.IBytes(req.ScmBytes), humanize.IBytes(req.NvmeBytes), req.Size)
	pool, destroy, err := env.createPool(ctx, req)
	if err != nil {
		return err
	}
	defer destroy()

	cont, err := env.createContainer(ctx, pool.Label)
	if err != nil {
		return err
	}

	orch := env.orchestrator()
	tc := env.testContext(fillName).WithPool(pool.Label, cont.Label)
	plan := env.Config.Faults
	out.Notef("fault plan: %s", &plan)

	verdict := orch.Run(ctx, tc, spec, groups, &plan)
	env.recordVerdict(out, verdict)

	// The pool must outlive any injection still waiting on rebuild.
	if err := orch.DrainFaults(ctx); err != nil {
		return err
	}
	if !verdict.Passed() || !readBack {
		return nil
	}

	read := *spec
	read.Operation = workload.OpRead
	for _, r := range verdict.Results {
		if r.BlockSize > 0 {
			read.BlockSize = r.BlockSize
			break
		}
	}
	tc.Name = fillName + "-read"
	env.recordVerdict(out, orch.Run(ctx, tc, &read, groups, nil))
	return nil
}
