//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
	"github.com/daos-stack/dharness/metrics"
	"github.com/daos-stack/dharness/orchestrator"
	"github.com/daos-stack/dharness/scenario"
	"github.com/daos-stack/dharness/workload"
)

type (
	// nodeProber probes the fleet capacity and the per-node breakdown.
	nodeProber interface {
		scenario.CapacityProber
		ProbeNodes(ctx context.Context, hosts []string) ([]*capacity.NodeCapacity, error)
	}

	// deviceInjector runs fault plans and previews device selection.
	deviceInjector interface {
		orchestrator.FaultRunner
		SelectDevices(ctx context.Context, plan *faultinject.Plan, hosts []string) ([]*dmg.Device, error)
	}

	// runtime holds the components a command drives, built from the
	// harness configuration.
	runtime struct {
		log      logging.Logger
		cfg      *config.Harness
		exec     remote.Executor
		cluster  scenario.Cluster
		prober   nodeProber
		cache    *capacity.Cache
		launcher orchestrator.WorkloadRunner
		injector deviceInjector
		metrics  *metrics.Harness
		closers  []func() error
	}

	runtimeBuilder func(ctx context.Context, log logging.Logger, cfg *config.Harness) (*runtime, error)
)

// Close releases the executor connections and the capacity cache.
func (rt *runtime) Close() error {
	var firstErr error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rt.closers = nil
	return firstErr
}

// scenarioEnv returns the environment scenarios run in.
func (rt *runtime) scenarioEnv(runID string) *scenario.Env {
	env := &scenario.Env{
		Log:      rt.log,
		Config:   rt.cfg,
		Exec:     rt.exec,
		Cluster:  rt.cluster,
		Prober:   rt.prober,
		Runner:   rt.launcher,
		Injector: rt.injector,
		RunID:    runID,
	}
	if rt.metrics != nil {
		env.Metrics = rt.metrics
	}
	return env
}

func newExecutor(log logging.Logger, cfg *config.Harness) (remote.Executor, func() error, error) {
	if cfg.Local {
		log.Debug("running commands on the local node")
		return remote.NewLocalExecutor(log), func() error { return nil }, nil
	}

	ssh, err := remote.NewSSHExecutor(log, cfg.SSH)
	if err != nil {
		return nil, nil, err
	}
	return ssh, ssh.Close, nil
}

func newUsageSource(cfg *config.Harness, exec remote.Executor, client *dmg.Client) capacity.UsageSource {
	if cfg.Capacity.Source == "lsblk" {
		return &capacity.LsblkSource{Exec: exec, Engines: cfg.Capacity.Engines}
	}
	return &capacity.DmgUsageSource{Client: client}
}

// newRuntime wires the cluster client, prober, launcher and injector over a
// single executor.
func newRuntime(ctx context.Context, log logging.Logger, cfg *config.Harness) (*runtime, error) {
	exec, closeExec, err := newExecutor(log, cfg)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		log:     log,
		cfg:     cfg,
		exec:    exec,
		metrics: metrics.New(),
		closers: []func() error{closeExec},
	}

	client := dmg.NewClient(log, exec, cfg.Dmg)
	rt.cluster = client

	proberOpts := []capacity.ProberOption{
		capacity.WithMargin(cfg.Capacity.Margin),
		capacity.WithEngineDevices(cfg.Capacity.Engines),
	}
	if !cfg.Capacity.NoCache {
		cache, err := capacity.OpenCache(cfg.CacheDir)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.cache = cache
		rt.closers = append(rt.closers, cache.Close)
		proberOpts = append(proberOpts, capacity.WithCache(cache))
	}
	if cfg.Capacity.Quiesce {
		proberOpts = append(proberOpts, capacity.WithQuiescer(&capacity.SystemQuiescer{System: client}))
	}
	rt.prober = capacity.NewProber(log, newUsageSource(cfg, exec, client), proberOpts...)

	rt.launcher = workload.NewLauncher(log, exec, client, cfg.Workload.Launcher())

	injOpts := []faultinject.Option{faultinject.WithRecorder(rt.metrics)}
	if cfg.LockDir != "" {
		claimer, err := faultinject.NewFileClaimer(filepath.Clean(cfg.LockDir))
		if err != nil {
			rt.Close()
			return nil, errors.Wrap(err, "device claims")
		}
		injOpts = append(injOpts, faultinject.WithClaimer(claimer))
	}
	rt.injector = faultinject.NewInjector(log, client, client, injOpts...)

	if err := ctx.Err(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}
