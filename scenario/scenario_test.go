//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/common/test"
	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
	"github.com/daos-stack/dharness/orchestrator"
	"github.com/daos-stack/dharness/workload"
)

var (
	testServers = []string{"srv1", "srv2"}
	testClients = []string{"cli1", "cli2", "cli3"}
	testAvail   = tierBytes{scm: 200 * humanize.GiByte, nvme: 2 * humanize.TiByte}
	testFleet   = &capacity.FleetCapacity{
		TierBytes: capacity.TierBytes{Tier0: 96 * humanize.GiByte, Tier1: 960 * humanize.GiByte},
		Margin:    capacity.DefaultMargin,
		Nodes:     2,
	}
)

func testEnv(log logging.Logger, cluster *fakeCluster) (*Env, *fakeRunner) {
	cfg := config.DefaultHarness()
	cfg.Servers = append(config.HostList{}, testServers...)
	cfg.Clients = append(config.HostList{}, testClients...)
	cfg.Groups = []*workload.Group{{Name: "clients", Hosts: append([]string{}, testClients...)}}
	cfg.SettleDelay = 0
	cfg.Scenarios = make(map[string]map[string]string)

	runner := &fakeRunner{block: 4 * humanize.MiByte}
	return &Env{
		Log:      log,
		Config:   cfg,
		Exec:     remote.NewMockExecutor(),
		Cluster:  cluster,
		Prober:   &fakeProber{fc: testFleet},
		Runner:   runner,
		Injector: newFakeInjector(nil),
		RunID:    "run-1",
	}, runner
}

func setParam(env *Env, scenario, key, value string) {
	if env.Config.Scenarios[scenario] == nil {
		env.Config.Scenarios[scenario] = make(map[string]string)
	}
	env.Config.Scenarios[scenario][key] = value
}

func TestScenario_Registry(t *testing.T) {
	r := Default()

	var names []string
	for _, s := range r.List() {
		names = append(names, s.Name)
	}
	expNames := []string{
		"fill", "ior-hard", "ior-hdf5", "ior-hdf5-vol", "ior-intercept",
		"pool-create-all-one", "pool-create-all-recycle", "pool-create-all-two",
		"preflight", "ras",
	}
	if diff := cmp.Diff(expNames, names); diff != "" {
		t.Fatalf("unexpected scenarios (-want, +got):\n%s", diff)
	}

	for name, tc := range map[string]struct {
		sel    []string
		expSel []string
		expErr error
	}{
		"by name": {
			sel:    []string{"ras", "fill"},
			expSel: []string{"ras", "fill"},
		},
		"by tag": {
			sel:    []string{"pool_create_all"},
			expSel: []string{"pool-create-all-one", "pool-create-all-recycle", "pool-create-all-two"},
		},
		"duplicates dropped": {
			sel:    []string{"preflight", "deployment"},
			expSel: []string{"preflight", "ras"},
		},
		"unknown": {
			sel:    []string{"fill", "bogus"},
			expErr: FaultNotFound("bogus"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := r.Select(tc.sel...)
			test.CmpErr(t, tc.expErr, err)
			if tc.expErr != nil {
				return
			}
			var gotNames []string
			for _, s := range got {
				gotNames = append(gotNames, s.Name)
			}
			if diff := cmp.Diff(tc.expSel, gotNames); diff != "" {
				t.Fatalf("unexpected selection (-want, +got):\n%s", diff)
			}
		})
	}

	err := r.Add(&Scenario{Name: "fill", Run: runFill})
	test.CmpErr(t, FaultDuplicate("fill"), err)
	test.CmpErr(t, errors.New("requires a name"), r.Add(&Scenario{Name: "x"}))
}

func TestScenario_PoolCreateAll(t *testing.T) {
	for name, tc := range map[string]struct {
		scenario   string
		params     map[string]string
		metadata   uint64
		short      uint64
		leak       uint64
		expCreates int
		expErr     error
		expMsg     string
	}{
		"one pool uses all storage": {
			scenario:   poolCreateAllOne,
			expCreates: 1,
		},
		"one pool smaller than available": {
			scenario:   poolCreateAllOne,
			short:      4096,
			expCreates: 1,
			expErr:     FaultCheckFailed(""),
			expMsg:     "invalid pool SCM size",
		},
		"two pools within metadata tolerance": {
			scenario:   poolCreateAllTwo,
			metadata:   humanize.GiByte,
			expCreates: 2,
		},
		"two pools metadata beyond tolerance": {
			scenario:   poolCreateAllTwo,
			metadata:   32 * humanize.GiByte,
			expCreates: 1,
			expErr:     FaultCheckFailed(""),
			expMsg:     "invalid remaining SCM size",
		},
		"two pools custom tolerance": {
			scenario:   poolCreateAllTwo,
			params:     map[string]string{"metadata_tolerance": "128GiB"},
			metadata:   32 * humanize.GiByte,
			expCreates: 2,
		},
		"two pools bad tolerance": {
			scenario: poolCreateAllTwo,
			params:   map[string]string{"metadata_tolerance": "lots"},
			expErr:   config.FaultConfigBadSize("lots", nil),
		},
		"recycle reclaims storage": {
			scenario:   poolCreateAllRecycle,
			expCreates: DefaultRecycleIterations,
		},
		"recycle iterations": {
			scenario:   poolCreateAllRecycle,
			params:     map[string]string{"iterations": "3"},
			expCreates: 3,
		},
		"recycle leak within epsilon": {
			scenario:   poolCreateAllRecycle,
			params:     map[string]string{"iterations": "1"},
			leak:       humanize.KiByte,
			expCreates: 1,
		},
		"recycle leaks storage": {
			scenario:   poolCreateAllRecycle,
			leak:       2 * humanize.MiByte,
			expCreates: 1,
			expErr:     FaultCheckFailed(""),
			expMsg:     "iteration 0",
		},
		"recycle bad iterations": {
			scenario: poolCreateAllRecycle,
			params:   map[string]string{"iterations": "-1"},
			expErr:   config.FaultConfigInvalid(""),
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			cluster := newFakeCluster(testServers, testAvail)
			cluster.metadata = tc.metadata
			cluster.short = tc.short
			cluster.leak = tc.leak
			env, _ := testEnv(log, cluster)
			for k, v := range tc.params {
				setParam(env, tc.scenario, k, v)
			}

			s, err := Default().Lookup(tc.scenario)
			if err != nil {
				t.Fatal(err)
			}
			out := Run(test.Context(t), env, s)

			test.CmpErr(t, tc.expErr, out.Err)
			if tc.expMsg != "" && !strings.Contains(out.Err.Error(), tc.expMsg) {
				t.Fatalf("expected error containing %q, got %q", tc.expMsg, out.Err)
			}
			test.AssertEqual(t, tc.expCreates, len(cluster.requests), "pool creates")
			test.AssertEqual(t, 0, cluster.livePools(), "pools left behind")
		})
	}
}

func TestScenario_FillPoolRequest(t *testing.T) {
	gib := func(n uint64) config.Size { return config.Size(n * humanize.GiByte) }

	for name, tc := range map[string]struct {
		pool   config.PoolConfig
		tier   workload.Tier
		fleet  *capacity.FleetCapacity
		expReq *dmg.PoolCreateReq
		expErr error
	}{
		"percentage size wins": {
			pool:   config.PoolConfig{Size: "80%", ScmSize: gib(1)},
			tier:   workload.TierNVMe,
			fleet:  testFleet,
			expReq: &dmg.PoolCreateReq{Label: "p", Size: "80%", ScmBytes: humanize.GiByte},
		},
		"nvme fill uses fleet capacity": {
			tier:  workload.TierNVMe,
			fleet: testFleet,
			expReq: &dmg.PoolCreateReq{
				Label:     "p",
				ScmBytes:  testFleet.Tier0,
				NvmeBytes: testFleet.Tier1,
			},
		},
		"nvme fill with configured scm": {
			pool:  config.PoolConfig{ScmSize: gib(8)},
			tier:  workload.TierNVMe,
			fleet: testFleet,
			expReq: &dmg.PoolCreateReq{
				Label:     "p",
				ScmBytes:  8 * humanize.GiByte,
				NvmeBytes: testFleet.Tier1,
			},
		},
		"scm fill": {
			tier:   workload.TierSCM,
			fleet:  testFleet,
			expReq: &dmg.PoolCreateReq{Label: "p", ScmBytes: testFleet.Tier0},
		},
		"no nvme capacity": {
			tier:   workload.TierNVMe,
			fleet:  &capacity.FleetCapacity{TierBytes: capacity.TierBytes{Tier0: humanize.GiByte}},
			expErr: FaultCheckFailed(""),
		},
		"no scm capacity": {
			tier:   workload.TierSCM,
			fleet:  &capacity.FleetCapacity{},
			expErr: FaultCheckFailed(""),
		},
	} {
		t.Run(name, func(t *testing.T) {
			req, err := fillPoolRequest(tc.pool, tc.tier, tc.fleet, "p")
			test.CmpErr(t, tc.expErr, err)
			if diff := cmp.Diff(tc.expReq, req); diff != "" {
				t.Fatalf("unexpected request (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestScenario_Fill(t *testing.T) {
	notEvicted := faultinject.FaultNotEvicted("srv1", test.MockUUID(1), "NORMAL", 0)

	for name, tc := range map[string]struct {
		noGroups   bool
		params     map[string]string
		plan       faultinject.Plan
		probeErr   error
		runFail    bool
		injectErr  error
		expSkipped bool
		expOps     []workload.Operation
		expInject  int
		expErr     error
	}{
		"no client groups": {
			noGroups:   true,
			expSkipped: true,
			expErr:     FaultSkipped(""),
		},
		"write then read back": {
			expOps: []workload.Operation{workload.OpWrite, workload.OpRead},
		},
		"no read back": {
			params: map[string]string{"read_back": "false"},
			expOps: []workload.Operation{workload.OpWrite},
		},
		"bad percent": {
			params: map[string]string{"percent": "lots"},
			expErr: config.FaultConfigInvalid(""),
		},
		"percent out of range": {
			params: map[string]string{"percent": "101"},
			expErr: workload.FaultBadSpec(""),
		},
		"probe fails": {
			probeErr: capacity.FaultQueryFailed("srv1", errors.New("down")),
			expErr:   capacity.FaultQueryFailed("", nil),
		},
		"workload fails": {
			runFail: true,
			expOps:  []workload.Operation{workload.OpWrite},
			expErr:  FaultCheckFailed(""),
		},
		"faults injected": {
			plan:      faultinject.Plan{Nodes: 1, DevicesPerNode: 1},
			expOps:    []workload.Operation{workload.OpWrite, workload.OpRead},
			expInject: 1,
		},
		"fault injection fails": {
			plan:      faultinject.Plan{Nodes: 1, DevicesPerNode: 1},
			injectErr: notEvicted,
			expOps:    []workload.Operation{workload.OpWrite},
			expInject: 1,
			expErr:    notEvicted,
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			cluster := newFakeCluster(testServers, testAvail)
			env, runner := testEnv(log, cluster)
			if tc.noGroups {
				env.Config.Groups = nil
			}
			for k, v := range tc.params {
				setParam(env, fillName, k, v)
			}
			env.Config.Faults = tc.plan
			env.Prober = &fakeProber{fc: testFleet, err: tc.probeErr}
			runner.fail = tc.runFail
			inj := newFakeInjector(tc.injectErr)
			env.Injector = inj
			if !tc.plan.Empty() {
				runner.wait = inj.called
			}
			rec := &fakeRecorder{}
			env.Metrics = rec

			var out *Outcome
			test.MustTimeout(t, 5*time.Second, func() {
				out = Run(test.Context(t), env, &Scenario{Name: fillName, Run: runFill})
			})

			test.CmpErr(t, tc.expErr, out.Err)
			test.AssertEqual(t, tc.expSkipped, out.Skipped(), "skipped")
			test.AssertEqual(t, 0, cluster.livePools(), "pools left behind")
			test.AssertEqual(t, tc.expInject, len(inj.plans), "injections")

			var ops []workload.Operation
			for _, s := range runner.specs {
				ops = append(ops, s.Operation)
			}
			if diff := cmp.Diff(tc.expOps, ops); diff != "" {
				t.Fatalf("unexpected workload runs (-want, +got):\n%s", diff)
			}
			if len(tc.expOps) == 0 {
				return
			}

			req := cluster.requests[0]
			test.AssertEqual(t, testFleet.Tier0, req.ScmBytes, "pool scm bytes")
			test.AssertEqual(t, testFleet.Tier1, req.NvmeBytes, "pool nvme bytes")
			test.AssertEqual(t, 1, len(rec.capacity), "capacity recorded")
			test.AssertEqual(t, len(tc.expOps), len(rec.verdicts), "verdicts recorded")
			if len(runner.specs) > 1 {
				test.AssertEqual(t, runner.block, runner.specs[1].BlockSize, "read block size")
			}
		})
	}
}

func TestScenario_Preflight(t *testing.T) {
	serverRule := &remote.MockRule{Contains: "daos_server version", Stdout: "daos_server version v2.6.0"}
	clientRule := &remote.MockRule{Contains: "dmg version -i", Stdout: "dmg version 2.6.0"}

	for name, tc := range map[string]struct {
		rules     []*remote.MockRule
		noClients bool
		params    map[string]string
		dmgVer    string
		expCalls  map[string]int
		expErr    error
	}{
		"versions agree": {
			rules: []*remote.MockRule{serverRule, clientRule},
			expCalls: map[string]int{
				"daos_server version": 2,
				"pdsh -S -w srv1,srv2": 2,
				"dmg version -i":       3,
				"sudo -n true":         0,
			},
		},
		"root access checked": {
			rules:    []*remote.MockRule{serverRule, clientRule},
			params:   map[string]string{"check_root": "true", "pdsh": "false"},
			expCalls: map[string]int{"sudo -n true": 2, "pdsh": 0},
		},
		"root access denied": {
			rules: []*remote.MockRule{
				{Host: "srv2", Contains: "sudo", Exit: 1, Stderr: "sudo: a password is required"},
				serverRule, clientRule,
			},
			params: map[string]string{"check_root": "yes"},
			expErr: FaultCheckFailed(""),
		},
		"no clients uses dmg host": {
			rules:     []*remote.MockRule{serverRule},
			noClients: true,
			dmgVer:    "2.6.0",
			expCalls:  map[string]int{"dmg version -i": 0},
		},
		"server versions differ": {
			rules: []*remote.MockRule{
				{Host: "srv2", Contains: "daos_server version", Stdout: "daos_server version v2.4.1"},
				serverRule, clientRule,
			},
			expErr: dmg.FaultVersionMismatch("", "", ""),
		},
		"client and server differ": {
			rules: []*remote.MockRule{
				serverRule,
				{Contains: "dmg version -i", Stdout: "dmg version 2.4.1"},
			},
			expErr: dmg.FaultVersionMismatch("", "", ""),
		},
		"server unreachable": {
			rules: []*remote.MockRule{
				{Host: "srv1", Contains: "daos_server", Err: remote.FaultConnectFailed("srv1", errors.New("refused"))},
				serverRule, clientRule,
			},
			expErr: remote.FaultConnectFailed("", nil),
		},
		"pdsh fails": {
			rules: []*remote.MockRule{
				serverRule, clientRule,
				{Contains: "pdsh", Exit: 1, Stderr: "srv2: ssh exited with exit code 255"},
			},
			expErr: FaultCheckFailed(""),
		},
		"no version output": {
			rules:  []*remote.MockRule{{Contains: "daos_server version", Stdout: "command not found"}},
			expErr: FaultCheckFailed(""),
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			cluster := newFakeCluster(testServers, testAvail)
			if tc.dmgVer != "" {
				cluster.version = tc.dmgVer
			}
			env, _ := testEnv(log, cluster)
			if tc.noClients {
				env.Config.Clients = nil
			}
			for k, v := range tc.params {
				setParam(env, preflightName, k, v)
			}
			var rules []*remote.MockRule
			for _, r := range tc.rules {
				cp := *r
				rules = append(rules, &cp)
			}
			exec := remote.NewMockExecutor(rules...)
			env.Exec = exec

			out := Run(test.Context(t), env, &Scenario{Name: preflightName, Run: runPreflight})
			test.CmpErr(t, tc.expErr, out.Err)

			for substr, n := range tc.expCalls {
				test.AssertEqual(t, n, len(exec.CallsMatching(substr)), substr)
			}
		})
	}
}

func TestScenario_Ras(t *testing.T) {
	members := []*dmg.Member{{Rank: 0}, {Rank: 1}, {Rank: 2}}

	for name, tc := range map[string]struct {
		members     []*dmg.Member
		scanMissing string
		pause       string
		expStopped  []ranklist.Rank
		expErr      error
	}{
		"all ranks cycled": {
			members:    members,
			expStopped: []ranklist.Rank{0, 1, 2},
		},
		"no members": {
			expErr: FaultCheckFailed(""),
		},
		"storage scan misses a server": {
			members:     members,
			scanMissing: "srv2",
			expStopped:  []ranklist.Rank{0, 1, 2},
			expErr:      FaultCheckFailed(""),
		},
		"bad pause": {
			members: members,
			pause:   "soon",
			expErr:  config.FaultConfigInvalid(""),
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			cluster := newFakeCluster(testServers, testAvail)
			cluster.members = tc.members
			cluster.scanMissing = tc.scanMissing
			env, _ := testEnv(log, cluster)
			pause := tc.pause
			if pause == "" {
				pause = "0s"
			}
			setParam(env, rasName, "pause", pause)

			out := Run(test.Context(t), env, &Scenario{Name: rasName, Run: runRas})
			test.CmpErr(t, tc.expErr, out.Err)

			if diff := cmp.Diff(tc.expStopped, cluster.StoppedRanks); diff != "" {
				t.Fatalf("unexpected stopped ranks (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.expStopped, cluster.started); diff != "" {
				t.Fatalf("unexpected started ranks (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestScenario_IorIntercept(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	cluster := newFakeCluster(testServers, testAvail)
	env, runner := testEnv(log, cluster)
	exec := remote.NewMockExecutor()
	env.Exec = exec

	out := Run(test.Context(t), env, &Scenario{Name: iorInterceptName, Run: runIorIntercept})
	if out.Err != nil {
		t.Fatal(out.Err)
	}

	test.AssertEqual(t, 1, len(runner.specs), "workload runs")
	spec := runner.specs[0]
	test.AssertEqual(t, workload.OpWriteRead, spec.Operation, "operation")
	test.AssertEqual(t, "POSIX", spec.API, "api")
	test.AssertEqual(t, uint64(humanize.GiByte), spec.BlockSize, "block size")

	expGroups := []*workload.Group{
		{
			Name:         "intercept",
			Hosts:        []string{"cli1", "cli2"},
			InterceptLib: DefaultInterceptLib,
			TestFile:     workload.DefaultDfuseMount + "/testfile_0_intercept",
		},
		{
			Name:     "dfuse",
			Hosts:    []string{"cli3"},
			TestFile: workload.DefaultDfuseMount + "/testfile_1",
		},
	}
	if diff := cmp.Diff(expGroups, runner.groups[0]); diff != "" {
		t.Fatalf("unexpected groups (-want, +got):\n%s", diff)
	}

	test.AssertEqual(t, 3, len(exec.CallsMatching("--mountpoint=")), "dfuse mounts")
	test.AssertEqual(t, 3, len(exec.CallsMatching("fusermount")), "dfuse unmounts")
	test.AssertEqual(t, 0, cluster.livePools(), "pools left behind")
	test.AssertEqual(t, "100%", cluster.requests[0].Size, "pool size")
	test.AssertEqual(t, 2, len(out.Notes), "group metric notes")
	test.AssertTrue(t, strings.HasPrefix(out.Notes[0], "2 clients with interception library: PASS"), out.Notes[0])

	env.Config.Clients = env.Config.Clients[:1]
	out = Run(test.Context(t), env, &Scenario{Name: iorInterceptName, Run: runIorIntercept})
	test.AssertTrue(t, out.Skipped(), "single client should skip")
}

func TestScenario_IorHard(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	cluster := newFakeCluster(testServers, testAvail)
	env, runner := testEnv(log, cluster)
	setParam(env, iorHardName, "object_class", "EC_2P1GX")
	setParam(env, iorHardName, "read_flags", "-r -R -C -k")

	out := Run(test.Context(t), env, &Scenario{Name: iorHardName, Run: runIorHard})
	if out.Err != nil {
		t.Fatal(out.Err)
	}

	test.AssertEqual(t, 2, len(runner.specs), "workload runs")
	write, read := runner.specs[0], runner.specs[1]
	test.AssertEqual(t, workload.OpWrite, write.Operation, "first run")
	test.AssertEqual(t, "EC_2P1GX", write.ObjectClass, "object class")
	test.AssertEqual(t, workload.OpRead, read.Operation, "second run")
	test.AssertEqual(t, "-r -R -C -k", read.FlagsFor(), "read flags")
	test.AssertEqual(t, runner.block, read.BlockSize, "read block size")
	test.AssertEqual(t, runner.pools[0], runner.pools[1], "read reuses pool")
}

func TestScenario_IorHardBlockSize(t *testing.T) {
	for name, tc := range map[string]struct {
		specBlock  uint64
		param      string
		expBlock   uint64
		expPercent uint
	}{
		"fill sizing without a block size": {
			expBlock:   4 * humanize.MiByte,
			expPercent: 75,
		},
		"block size parameter": {
			param:    "8MiB",
			expBlock: 8 * humanize.MiByte,
		},
		"configured block size": {
			specBlock: 16 * humanize.MiByte,
			param:     "8MiB",
			expBlock:  16 * humanize.MiByte,
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			env, runner := testEnv(log, newFakeCluster(testServers, testAvail))
			env.Config.Spec.FillPercent = 75
			env.Config.Spec.BlockSize = tc.specBlock
			if tc.param != "" {
				setParam(env, iorHardName, "block_size", tc.param)
			}

			out := Run(test.Context(t), env, &Scenario{Name: iorHardName, Run: runIorHard})
			if out.Err != nil {
				t.Fatal(out.Err)
			}

			test.AssertEqual(t, 2, len(runner.specs), "workload runs")
			write, read := runner.specs[0], runner.specs[1]
			test.AssertEqual(t, tc.expPercent, write.FillPercent, "write fill percent")
			test.AssertEqual(t, workload.DefaultWriteFlags, write.FlagsFor(), "write flags")
			test.AssertEqual(t, tc.expBlock, read.BlockSize, "read block size")
			if tc.expPercent == 0 {
				test.AssertEqual(t, tc.expBlock, write.BlockSize, "write block size")
			}
		})
	}
}

// testIorOutput is the summary section of a passing IOR run.
const testIorOutput = `Summary of all tests:
Operation   Max(MiB)   Min(MiB)  Mean(MiB)     StdDev   Max(OPs)   Min(OPs)  Mean(OPs)     StdDev    Mean(s) Stonewall(s) Stonewall(MiB) Test# #Tasks tPN reps fPP reord reordoff reordrand seed segcnt   blksiz    xsize aggs(MiB)   API RefNum
write         900.00     800.00     850.00      50.00     900.00     800.00     850.00      50.00    1.20000         NA            NA     0      3   1    1   0     0        1         0    0      1  1048576  1048576       3.0  HDF5      0
read         1900.00    1800.00    1850.00      50.00    1900.00    1800.00    1850.00      50.00    0.60000         NA            NA     0      3   1    1   0     0        1         0    0      1  1048576  1048576       3.0  HDF5      0
Finished            : Thu Oct  1 10:00:02 2026
`

func TestScenario_IorHdf5(t *testing.T) {
	mount := workload.DefaultDfuseMount

	for name, tc := range map[string]struct {
		scenario *Scenario
		params   map[string]string
		expCmd   string
		expNotes int
	}{
		"hdf5 api": {
			scenario: &Scenario{Name: iorHdf5Name, Run: runIorHdf5},
			expCmd: "mpirun -H cli1,cli2,cli3 -np 3 --map-by node -x D_LOG_MASK=ERR " +
				"ior -a HDF5 -b 1048576 -t 1048576 -v -W -w -r -R -o " + mount + "/testfile",
		},
		"vol connector": {
			scenario: &Scenario{Name: iorHdf5VolName, Run: runIorHdf5Vol},
			params:   map[string]string{"plugin_path": "/opt/hdf5/vol"},
			expCmd: "mpirun -H cli1,cli2,cli3 -np 3 --map-by node -x D_LOG_MASK=ERR " +
				"-x HDF5_PLUGIN_PATH=/opt/hdf5/vol -x HDF5_VOL_CONNECTOR=daos " +
				"ior -a HDF5 -b 1048576 -t 1048576 -v -W -w -r -R -o " + mount + "/testfile",
			expNotes: 1,
		},
		"vol connector default plugin path": {
			scenario: &Scenario{Name: iorHdf5VolName, Run: runIorHdf5Vol},
			expCmd: "mpirun -H cli1,cli2,cli3 -np 3 --map-by node -x D_LOG_MASK=ERR " +
				"-x HDF5_PLUGIN_PATH=" + DefaultHdf5PluginPath + " -x HDF5_VOL_CONNECTOR=daos " +
				"ior -a HDF5 -b 1048576 -t 1048576 -v -W -w -r -R -o " + mount + "/testfile",
			expNotes: 1,
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			cluster := newFakeCluster(testServers, testAvail)
			env, _ := testEnv(log, cluster)
			env.Config.Spec.Processes = 3
			env.Config.Spec.TransferSize = humanize.MiByte
			for k, v := range tc.params {
				setParam(env, tc.scenario.Name, k, v)
			}
			setParam(env, tc.scenario.Name, "block_size", "1MiB")

			exec := remote.NewMockExecutor(&remote.MockRule{Contains: "mpirun", Stdout: testIorOutput})
			env.Exec = exec
			env.Runner = workload.NewLauncher(log, exec, cluster, workload.Config{
				Env: map[string]string{"D_LOG_MASK": "ERR"},
			})

			out := Run(test.Context(t), env, tc.scenario)
			if out.Err != nil {
				t.Fatal(out.Err)
			}
			test.AssertTrue(t, out.Passed(), "scenario failed")

			calls := exec.CallsMatching("mpirun")
			test.AssertEqual(t, 1, len(calls), "mpirun calls")
			test.AssertEqual(t, "cli1", calls[0].Host, "launch host")
			test.AssertEqual(t, tc.expCmd, calls[0].Cmd, "mpirun command")

			test.AssertEqual(t, 3, len(exec.CallsMatching("--mountpoint=")), "dfuse mounts")
			test.AssertEqual(t, 3, len(exec.CallsMatching("fusermount")), "dfuse unmounts")
			test.AssertEqual(t, 0, cluster.livePools(), "pools left behind")
			test.AssertEqual(t, tc.expNotes, len(out.Notes), "notes")
		})
	}

	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)
	env, _ := testEnv(log, newFakeCluster(testServers, testAvail))
	env.Config.Clients = nil
	out := Run(test.Context(t), env, &Scenario{Name: iorHdf5VolName, Run: runIorHdf5Vol})
	test.AssertTrue(t, out.Skipped(), "no clients should skip")
}

func TestScenario_Outcome(t *testing.T) {
	failed := &orchestrator.Verdict{
		Name:    "fill",
		Status:  workload.StatusFail,
		Results: []*workload.Result{{Group: "a", Status: workload.StatusFail}},
	}

	for name, tc := range map[string]struct {
		run        func(context.Context, *Env, *Outcome) error
		expStatus  string
		expErr     error
		expMessage string
	}{
		"pass": {
			run:       func(context.Context, *Env, *Outcome) error { return nil },
			expStatus: "PASS",
		},
		"failed verdict": {
			run: func(_ context.Context, _ *Env, out *Outcome) error {
				out.AddVerdict(failed)
				return nil
			},
			expStatus:  "FAIL",
			expErr:     FaultCheckFailed(""),
			expMessage: "1 of 1 worker group failed",
		},
		"skipped": {
			run:        func(context.Context, *Env, *Outcome) error { return FaultSkipped("no clients") },
			expStatus:  "SKIP",
			expErr:     FaultSkipped(""),
			expMessage: "skipped: no clients",
		},
		"panic": {
			run:        func(context.Context, *Env, *Outcome) error { panic("boom") },
			expStatus:  "FAIL",
			expErr:     errors.New("scenario panicked: boom"),
			expMessage: "boom",
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			env, _ := testEnv(log, newFakeCluster(testServers, testAvail))
			out := Run(test.Context(t), env, &Scenario{Name: "s", Run: tc.run})

			test.CmpErr(t, tc.expErr, out.Err)
			test.AssertEqual(t, tc.expStatus, out.Status(), "status")

			c := out.Case()
			test.AssertEqual(t, tc.expStatus == "PASS", c.Passed, "case passed")
			test.AssertEqual(t, tc.expStatus == "SKIP", c.Skipped, "case skipped")
			test.AssertTrue(t, strings.Contains(c.Message, tc.expMessage), c.Message)

			data, err := json.Marshal(out)
			if err != nil {
				t.Fatal(err)
			}
			var decoded map[string]interface{}
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatal(err)
			}
			test.AssertEqual(t, tc.expStatus, decoded["status"], "json status")
		})
	}
}

func TestScenario_RunAllCanceled(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	env, _ := testEnv(log, newFakeCluster(testServers, testAvail))
	ctx, cancel := context.WithCancel(test.Context(t))

	var ran []string
	mk := func(name string) *Scenario {
		return &Scenario{Name: name, Run: func(context.Context, *Env, *Outcome) error {
			ran = append(ran, name)
			cancel()
			return nil
		}}
	}
	outcomes := RunAll(ctx, env, []*Scenario{mk("first"), mk("second")})

	test.AssertEqual(t, 2, len(outcomes), "outcomes")
	test.AssertEqual(t, "PASS", outcomes[0].Status(), "first status")
	test.CmpErr(t, context.Canceled, outcomes[1].Err)
	if diff := cmp.Diff([]string{"first"}, ran); diff != "" {
		t.Fatalf("unexpected runs (-want, +got):\n%s", diff)
	}
	test.AssertFalse(t, fault.IsFaultCode(outcomes[1].Err, code.ScenarioSkipped), "canceled is not skipped")
}
