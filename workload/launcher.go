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
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
)

const (
	// DefaultScmTransferSize is the IOR transfer size used when filling SCM.
	DefaultScmTransferSize = 256 * humanize.KiByte
	// DefaultNvmeTransferSize is the IOR transfer size used when filling NVMe.
	DefaultNvmeTransferSize = humanize.MiByte
	// DefaultTestFile is the IOR test file within the container.
	DefaultTestFile = "/testFile"
)

// PoolInfoGetter returns tier usage of a pool.
type PoolInfoGetter interface {
	PoolQuery(ctx context.Context, pool string) (*dmg.PoolInfo, error)
}

// Config holds launcher settings shared by all runs.
type Config struct {
	IorPath          string            `yaml:"ior_path,omitempty"`
	Mpi              MpiConfig         `yaml:"mpi,omitempty"`
	ScmTransferSize  uint64            `yaml:"-"`
	NvmeTransferSize uint64            `yaml:"-"`
	Env              map[string]string `yaml:"env,omitempty"`
	TestFile         string            `yaml:"test_file,omitempty"`
}

// Launcher runs IOR worker groups through mpirun.
type Launcher struct {
	log   logging.Logger
	exec  remote.Executor
	pools PoolInfoGetter
	cfg   Config
}

// NewLauncher returns a Launcher.
func NewLauncher(log logging.Logger, exec remote.Executor, pools PoolInfoGetter, cfg Config) *Launcher {
	if cfg.ScmTransferSize == 0 {
		cfg.ScmTransferSize = DefaultScmTransferSize
	}
	if cfg.NvmeTransferSize == 0 {
		cfg.NvmeTransferSize = DefaultNvmeTransferSize
	}
	if cfg.TestFile == "" {
		cfg.TestFile = DefaultTestFile
	}
	return &Launcher{log: log, exec: exec, pools: pools, cfg: cfg}
}

// TransferSize returns the transfer size used for the spec's tier.
func (l *Launcher) TransferSize(spec *Spec) uint64 {
	switch {
	case spec.TransferSize != 0:
		return spec.TransferSize
	case spec.Tier == TierSCM:
		return l.cfg.ScmTransferSize
	default:
		return l.cfg.NvmeTransferSize
	}
}

// PlanBlockSize returns the per-worker block size. Fill writes derive it
// from the pool's free bytes in the selected tier; fixed-size writes and
// other operations reuse the spec's block size.
func (l *Launcher) PlanBlockSize(ctx context.Context, spec *Spec, pool string, workers int) (uint64, error) {
	if spec.Operation != OpWrite || spec.FillPercent == 0 {
		return spec.BlockSize, nil
	}

	pi, err := l.pools.PoolQuery(ctx, pool)
	if err != nil {
		return 0, errors.Wrapf(err, "querying pool %s", pool)
	}
	tier := pi.Tier(spec.Tier.MediaType())
	if tier == nil {
		return 0, FaultBadSpec(fmt.Sprintf("pool %s has no %s tier", pool, spec.Tier))
	}

	factor := ReplicaFactor(spec.ObjectClass)
	block, err := BlockSize(tier.Free, spec.FillPercent, workers, factor, l.TransferSize(spec))
	if err != nil {
		return 0, err
	}
	l.log.Infof("workload: %d%% of %s free %s over %d workers (factor %d): block size %s",
		spec.FillPercent, spec.Tier, humanize.IBytes(tier.Free), workers, factor, humanize.IBytes(block))
	return block, nil
}

// resolveGroups copies the groups, assigning each group without an explicit
// process count its share of the spec's processes.
func resolveGroups(spec *Spec, groups []*Group) []*Group {
	totalClients := 0
	for _, g := range groups {
		totalClients += len(g.Hosts)
	}

	out := make([]*Group, len(groups))
	for i, g := range groups {
		cp := *g
		cp.Hosts = append([]string{}, g.Hosts...)
		if cp.Processes == 0 {
			cp.Processes = SplitProcesses(spec.Processes, totalClients, len(cp.Hosts))
		}
		if cp.Name == "" {
			cp.Name = fmt.Sprintf("group%d", i)
		}
		out[i] = &cp
	}
	return out
}

// Launch runs a single worker group and returns its result.
func (l *Launcher) Launch(ctx context.Context, spec *Spec, pool, cont string, group *Group) *Result {
	return l.LaunchGroups(ctx, spec, pool, cont, []*Group{group})[0]
}

// LaunchGroups runs the worker groups concurrently and returns one result
// per group, in group order, once every group has reported. Failures are
// reported as FAIL results and never returned as errors.
func (l *Launcher) LaunchGroups(ctx context.Context, spec *Spec, pool, cont string, groups []*Group) []*Result {
	resolved := resolveGroups(spec, groups)
	results := make([]*Result, len(resolved))

	failAll := func(err error) []*Result {
		for i, g := range resolved {
			results[i] = failResult(g.Name, err)
		}
		return results
	}

	if err := spec.Validate(); err != nil {
		return failAll(err)
	}
	workers := 0
	for _, g := range resolved {
		if g.Processes <= 0 {
			return failAll(FaultBadSpec(fmt.Sprintf("group %s has no processes", g.Name)))
		}
		workers += g.Processes
	}

	block, err := l.PlanBlockSize(ctx, spec, pool, workers)
	if err != nil {
		return failAll(err)
	}

	chans := make([]chan *Result, len(resolved))
	for i, g := range resolved {
		chans[i] = make(chan *Result, 1)
		go func(g *Group, ch chan<- *Result) {
			defer func() {
				if r := recover(); r != nil {
					ch <- failResult(g.Name, FaultWorkloadFailed(g.Name, fmt.Sprintf("panic: %v", r)))
				}
			}()
			ch <- l.run(ctx, spec, pool, cont, g, block)
		}(g, chans[i])
	}
	for i, ch := range chans {
		results[i] = <-ch
	}

	return results
}

func (l *Launcher) run(ctx context.Context, spec *Spec, pool, cont string, g *Group, block uint64) *Result {
	testFile := g.TestFile
	if testFile == "" {
		testFile = l.cfg.TestFile
	}
	ic := &IorCommand{
		Path:         l.cfg.IorPath,
		API:          spec.API,
		Flags:        spec.FlagsFor(),
		BlockSize:    block,
		TransferSize: l.TransferSize(spec),
		ChunkSize:    spec.ChunkSize,
		SegmentCount: spec.SegmentCount,
		TestFile:     testFile,
		Pool:         pool,
		Container:    cont,
		ObjectClass:  spec.ObjectClass,
	}
	iorArgs, err := ic.Args()
	if err != nil {
		return failResult(g.Name, FaultBadSpec(err.Error()))
	}
	cmd, err := MpirunCommand(l.cfg.Mpi, g, l.cfg.Env, iorArgs)
	if err != nil {
		return failResult(g.Name, FaultBadSpec(err.Error()))
	}

	result := &Result{Group: g.Name, BlockSize: block, Command: cmd, Status: StatusFail}
	fail := func(err error) *Result {
		result.Err = err
		l.log.Errorf("workload: %s: %s", g.Name, err)
		return result
	}

	tctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	l.log.Infof("workload: %s: %s on %d processes", g.Name, spec.Operation, g.Processes)
	l.log.Debugf("workload: %s: %s", g.Name, cmd)
	start := time.Now()
	res, err := l.exec.Exec(tctx, g.Hosts[0], cmd)
	result.Elapsed = time.Since(start)
	switch {
	case err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
		return fail(FaultWorkloadFailed(g.Name, fmt.Sprintf("timed out after %s", spec.Timeout)))
	case err != nil:
		return fail(FaultWorkloadFailed(g.Name, err.Error()))
	case !res.Succeeded():
		reason := strings.Join(IorErrors(res.Stdout), "; ")
		if reason == "" {
			reason = strings.TrimSpace(res.Stderr)
		}
		return fail(FaultWorkloadFailed(g.Name, fmt.Sprintf("exit status %d: %s", res.ExitStatus, reason)))
	}

	metrics, err := ParseIorMetrics(res.Stdout)
	if err != nil {
		return fail(FaultWorkloadFailed(g.Name, err.Error()))
	}
	if len(metrics) == 0 {
		return fail(FaultWorkloadFailed(g.Name, "no ior summary in output"))
	}
	result.Metrics = metrics

	if warnings := IorWarnings(res.Stdout); len(warnings) > 0 {
		if spec.FailOnWarning {
			return fail(FaultWarnings(g.Name, warnings))
		}
		l.log.Noticef("workload: %s: %d ior warnings", g.Name, len(warnings))
	}

	result.Status = StatusPass
	for _, m := range metrics {
		l.log.Infof("workload: %s: %s mean %.2f MiB/s over %d tasks", g.Name, m.Operation, m.MeanMiB, m.Tasks)
	}
	return result
}
