//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/orchestrator"
	"github.com/daos-stack/dharness/workload"
)

// fakeCluster models the observable capacity contract of pool creation:
// a percentage pool takes that share of the free bytes, and any pool
// smaller than all of the free bytes also costs metadata bytes.
type fakeCluster struct {
	*faultinject.MockCluster
	sync.Mutex

	hosts    []string
	free     tierBytes
	metadata uint64
	// short is subtracted from the tiers reported for a pool.
	short uint64
	// leak is the SCM not returned when a pool is destroyed.
	leak uint64

	pools     map[string]tierBytes
	charged   map[string]tierBytes
	requests  []*dmg.PoolCreateReq
	destroyed []string
	started   []ranklist.Rank

	members     []*dmg.Member
	version     string
	scanMissing string
	createErr   error
}

func newFakeCluster(hosts []string, free tierBytes) *fakeCluster {
	return &fakeCluster{
		MockCluster: faultinject.NewMockCluster(faultinject.MockClusterConfig{}),
		hosts:       hosts,
		free:        free,
		pools:       make(map[string]tierBytes),
		charged:     make(map[string]tierBytes),
		version:     "2.6.0",
	}
}

func (fc *fakeCluster) StorageUsage(_ context.Context, hosts []string) (map[string]*dmg.HostStorage, error) {
	fc.Lock()
	defer fc.Unlock()

	out := make(map[string]*dmg.HostStorage)
	n := uint64(len(fc.hosts))
	for _, h := range fc.hosts {
		out[h] = &dmg.HostStorage{
			ScmNamespaces: []*dmg.ScmNamespace{
				{Mount: &dmg.ScmMount{AvailBytes: fc.free.scm / n}},
			},
			NvmeDevices: []*dmg.NvmeController{
				{SmdDevices: []*dmg.SmdDevice{{AvailBytes: fc.free.nvme / n}}},
			},
		}
	}
	return out, nil
}

func (fc *fakeCluster) StorageScan(_ context.Context, hosts []string) (map[string]*dmg.HostStorage, error) {
	out := make(map[string]*dmg.HostStorage)
	for _, h := range hosts {
		if h != fc.scanMissing {
			out[h] = &dmg.HostStorage{}
		}
	}
	return out, nil
}

func (fc *fakeCluster) NetworkScan(_ context.Context, hosts []string) ([]string, error) {
	return append([]string{}, hosts...), nil
}

func (fc *fakeCluster) SystemQuery(context.Context) ([]*dmg.Member, error) {
	return fc.members, nil
}

func (fc *fakeCluster) SystemStart(_ context.Context, ranks ranklist.RankList) error {
	fc.Lock()
	defer fc.Unlock()
	fc.started = append(fc.started, ranks...)
	return nil
}

func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func (fc *fakeCluster) PoolCreate(_ context.Context, req *dmg.PoolCreateReq) (*dmg.PoolCreateResp, error) {
	fc.Lock()
	defer fc.Unlock()

	fc.requests = append(fc.requests, req)
	if fc.createErr != nil {
		return nil, fc.createErr
	}

	var pool tierBytes
	if req.Size != "" {
		pct, err := strconv.ParseUint(strings.TrimSuffix(req.Size, "%"), 10, 64)
		if err != nil {
			return nil, err
		}
		pool = tierBytes{scm: fc.free.scm * pct / 100, nvme: fc.free.nvme * pct / 100}
	} else {
		pool = tierBytes{scm: req.ScmBytes, nvme: req.NvmeBytes}
	}

	charged := pool
	if pool.scm < fc.free.scm {
		charged.scm += fc.metadata
	}
	if pool.nvme < fc.free.nvme {
		charged.nvme += fc.metadata
	}
	fc.free = tierBytes{scm: sub(fc.free.scm, charged.scm), nvme: sub(fc.free.nvme, charged.nvme)}

	fc.pools[req.Label] = tierBytes{scm: sub(pool.scm, fc.short), nvme: sub(pool.nvme, fc.short)}
	fc.charged[req.Label] = charged
	return &dmg.PoolCreateResp{UUID: "uuid-" + req.Label, Label: req.Label}, nil
}

func (fc *fakeCluster) PoolQuery(_ context.Context, pool string) (*dmg.PoolInfo, error) {
	fc.Lock()
	defer fc.Unlock()

	tb, found := fc.pools[pool]
	if !found {
		return nil, errors.Errorf("no pool %s", pool)
	}
	return &dmg.PoolInfo{
		Label: pool,
		TierStats: []*dmg.TierUsage{
			{Total: tb.scm, Free: tb.scm, MediaType: dmg.MediaTypeScm},
			{Total: tb.nvme, Free: tb.nvme, MediaType: dmg.MediaTypeNvme},
		},
		Rebuild: &dmg.RebuildStatus{State: dmg.RebuildStateIdle},
	}, nil
}

func (fc *fakeCluster) PoolDestroy(_ context.Context, pool string) error {
	fc.Lock()
	defer fc.Unlock()

	charged, found := fc.charged[pool]
	if !found {
		return errors.Errorf("no pool %s", pool)
	}
	delete(fc.pools, pool)
	delete(fc.charged, pool)
	fc.free.scm += sub(charged.scm, fc.leak)
	fc.free.nvme += charged.nvme
	fc.destroyed = append(fc.destroyed, pool)
	return nil
}

func (fc *fakeCluster) ContainerCreate(_ context.Context, req *dmg.ContainerCreateReq) (*dmg.ContainerCreateResp, error) {
	return &dmg.ContainerCreateResp{UUID: "uuid-" + req.Label, Label: req.Label}, nil
}

func (fc *fakeCluster) Version(context.Context) (string, error) {
	return fc.version, nil
}

func (fc *fakeCluster) livePools() int {
	fc.Lock()
	defer fc.Unlock()
	return len(fc.pools)
}

type fakeProber struct {
	fc    *capacity.FleetCapacity
	err   error
	calls int
}

func (fp *fakeProber) Probe(context.Context, []string) (*capacity.FleetCapacity, error) {
	fp.calls++
	return fp.fc, fp.err
}

// fakeRunner records each run and reports every group as passed unless
// fail is set. Fill writes report block as their block size.
type fakeRunner struct {
	sync.Mutex
	block  uint64
	fail   bool
	wait   <-chan struct{}
	specs  []workload.Spec
	groups [][]*workload.Group
	pools  []string
}

func (fr *fakeRunner) LaunchGroups(ctx context.Context, spec *workload.Spec, pool, _ string, groups []*workload.Group) []*workload.Result {
	if fr.wait != nil {
		select {
		case <-fr.wait:
		case <-ctx.Done():
		}
	}

	fr.Lock()
	defer fr.Unlock()
	fr.specs = append(fr.specs, *spec)
	fr.groups = append(fr.groups, groups)
	fr.pools = append(fr.pools, pool)

	block := spec.BlockSize
	if spec.Operation == workload.OpWrite && spec.FillPercent != 0 {
		block = fr.block
	}
	var out []*workload.Result
	for _, g := range groups {
		r := &workload.Result{
			Group:     g.Name,
			Status:    workload.StatusPass,
			BlockSize: block,
			Metrics:   []*workload.IorMetric{{Operation: "write", MeanMiB: 512}},
		}
		if fr.fail {
			r.Status = workload.StatusFail
			r.Err = errors.New("ior failed")
		}
		out = append(out, r)
	}
	return out
}

type fakeInjector struct {
	sync.Mutex
	once   sync.Once
	called chan struct{}
	err    error
	plans  []faultinject.Plan
}

func newFakeInjector(err error) *fakeInjector {
	return &fakeInjector{called: make(chan struct{}), err: err}
}

func (fi *fakeInjector) Inject(_ context.Context, plan *faultinject.Plan, _ *faultinject.Target) error {
	fi.Lock()
	fi.plans = append(fi.plans, *plan)
	fi.Unlock()
	fi.once.Do(func() { close(fi.called) })
	return fi.err
}

type fakeRecorder struct {
	capacity []*capacity.FleetCapacity
	verdicts []*orchestrator.Verdict
}

func (fr *fakeRecorder) RecordCapacity(fc *capacity.FleetCapacity) {
	fr.capacity = append(fr.capacity, fc)
}

func (fr *fakeRecorder) RecordVerdict(v *orchestrator.Verdict) {
	fr.verdicts = append(fr.verdicts, v)
}
