//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package workload

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/common/test"
	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
)

const iorOutput = `IOR-3.4.0: MPI Coordinated Test of Parallel I/O
Began               : Thu Oct  1 10:00:00 2026
Command line        : ior -a DFS -b 1048576 -t 1048576 -w -F -k -G 1
WARNING: unable to use realpath() on file system.

Max Write: 1500.25 MiB/sec (1573.13 MB/sec)

Summary of all tests:
Operation   Max(MiB)   Min(MiB)  Mean(MiB)     StdDev   Max(OPs)   Min(OPs)  Mean(OPs)     StdDev    Mean(s) Stonewall(s) Stonewall(MiB) Test# #Tasks tPN reps fPP reord reordoff reordrand seed segcnt   blksiz    xsize aggs(MiB)   API RefNum
write        1500.25    1400.50    1450.00      50.00    1500.25    1400.50    1450.00      50.00    0.70000         NA            NA     0     16   8    1   1     0        1         0    0      1  1048576  1048576      16.0   DFS      0
read         2500.00    2400.00    2450.00      50.00    2500.00    2400.00    2450.00      50.00    0.40000         NA            NA     0     16   8    1   1     0        1         0    0      1  1048576  1048576      16.0   DFS      0
Finished            : Thu Oct  1 10:00:02 2026
`

type mockPools struct {
	info *dmg.PoolInfo
	err  error
}

func (mp *mockPools) PoolQuery(context.Context, string) (*dmg.PoolInfo, error) {
	return mp.info, mp.err
}

func poolInfo(scmFree, nvmeFree uint64) *dmg.PoolInfo {
	return &dmg.PoolInfo{TierStats: []*dmg.TierUsage{
		{Total: scmFree * 2, Free: scmFree, MediaType: dmg.MediaTypeScm},
		{Total: nvmeFree * 2, Free: nvmeFree, MediaType: dmg.MediaTypeNvme},
	}}
}

func TestWorkload_ReplicaFactor(t *testing.T) {
	for oclass, exp := range map[string]int{
		"":          1,
		"SX":        1,
		"S1":        1,
		"RP_2G1":    2,
		"RP_3GX":    3,
		"rp_2g1":    2,
		"EC_2P1G1":  2,
		"EC_8P2GX":  8,
		"EC_16P2G1": 16,
		"RP_0G1":    1,
	} {
		t.Run(oclass, func(t *testing.T) {
			test.AssertEqual(t, exp, ReplicaFactor(oclass), "unexpected factor")
		})
	}
}

func TestWorkload_BlockSize(t *testing.T) {
	for name, tc := range map[string]struct {
		avail   uint64
		percent uint
		workers int
		factor  int
		xfer    uint64
		expSize uint64
		expCode code.Code
	}{
		"100GiB half over 16 workers replica 2": {
			avail:   100 << 30,
			percent: 50,
			workers: 16,
			factor:  2,
			xfer:    1 << 20,
			expSize: 1600 << 20,
		},
		"quantized down": {
			avail:   1000,
			percent: 100,
			workers: 3,
			factor:  1,
			xfer:    64,
			expSize: 320,
		},
		"zero block is a fault": {
			avail:   1000,
			percent: 1,
			workers: 1,
			factor:  1,
			xfer:    1 << 20,
			expCode: code.WorkloadBadBlockSize,
		},
		"no overflow at max": {
			avail:   ^uint64(0),
			percent: 100,
			workers: 1,
			factor:  1,
			xfer:    1,
			expSize: ^uint64(0),
		},
		"bad percent": {
			avail:   1000,
			percent: 101,
			workers: 1,
			factor:  1,
			xfer:    1,
			expCode: code.WorkloadBadSpec,
		},
		"zero workers": {
			avail:   1000,
			percent: 10,
			factor:  1,
			xfer:    1,
			expCode: code.WorkloadBadSpec,
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := BlockSize(tc.avail, tc.percent, tc.workers, tc.factor, tc.xfer)
			if tc.expCode != code.Unknown {
				test.AssertTrue(t, fault.IsFaultCode(err, tc.expCode), "unexpected error: "+errStr(err))
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			test.AssertEqual(t, tc.expSize, got, "unexpected block size")
		})
	}
}

func TestWorkload_BlockSizeProperties(t *testing.T) {
	const xfer = 4096
	for _, avail := range []uint64{1 << 30, 3<<30 + 12345, 7 << 40} {
		for _, workers := range []int{1, 2, 3, 8, 48} {
			a, err := BlockSize(avail, 80, workers, 2, xfer)
			if err != nil {
				t.Fatal(err)
			}
			b, err := BlockSize(avail, 80, workers, 2, xfer)
			if err != nil {
				t.Fatal(err)
			}
			test.AssertEqual(t, a, b, "block size is not idempotent")
			test.AssertEqual(t, uint64(0), a%xfer, "block size is not a multiple of the transfer size")

			doubled, err := BlockSize(avail, 80, workers*2, 2, xfer)
			if err != nil {
				t.Fatal(err)
			}
			test.AssertTrue(t, doubled <= a/2 && doubled+xfer > a/2,
				"doubling workers should halve the block size within one transfer")
		}
	}
}

func TestWorkload_SplitProcesses(t *testing.T) {
	test.AssertEqual(t, 8, SplitProcesses(16, 4, 2), "unexpected split")
	test.AssertEqual(t, 6, SplitProcesses(10, 3, 2), "unexpected split")
	test.AssertEqual(t, 0, SplitProcesses(10, 0, 2), "unexpected split")
}

func TestWorkload_ParseIorMetrics(t *testing.T) {
	got, err := ParseIorMetrics(iorOutput)
	if err != nil {
		t.Fatal(err)
	}

	exp := []*IorMetric{
		{Operation: "write", MaxMiB: 1500.25, MinMiB: 1400.5, MeanMiB: 1450, MeanOps: 1450, MeanSecs: 0.7,
			Tasks: 16, BlockSize: 1048576, XferSize: 1048576, API: "DFS"},
		{Operation: "read", MaxMiB: 2500, MinMiB: 2400, MeanMiB: 2450, MeanOps: 2450, MeanSecs: 0.4,
			Tasks: 16, BlockSize: 1048576, XferSize: 1048576, API: "DFS"},
	}
	if diff := cmp.Diff(exp, got, cmpopts.IgnoreFields(IorMetric{}, "Fields")); diff != "" {
		t.Fatalf("unexpected metrics (-want, +got):\n%s\n", diff)
	}
	test.AssertEqual(t, "1", got[0].Fields["segcnt"], "unexpected raw field")

	none, err := ParseIorMetrics("no summary here")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, 0, len(none), "expected no metrics")

	_, err = ParseIorMetrics("Summary of all tests:\nOperation Max(MiB)\nwrite\n")
	test.CmpErr(t, errors.New("fields"), err)

	test.AssertEqual(t, []string{"WARNING: unable to use realpath() on file system."},
		IorWarnings(iorOutput), "unexpected warnings")
}

func TestWorkload_MpirunCommand(t *testing.T) {
	ior := []string{"ior", "-a", "DFS"}
	group := &Group{Name: "g", Hosts: []string{"c1", "c2"}, Processes: 8, InterceptLib: "/usr/lib64/libpil4dfs.so"}
	env := map[string]string{"D_LOG_MASK": "ERR"}

	for name, tc := range map[string]struct {
		mpi    MpiConfig
		group  *Group
		expCmd string
		expErr error
	}{
		"openmpi": {
			expCmd: "mpirun -H c1,c2 -np 8 --map-by node -x D_LOG_MASK=ERR -x LD_PRELOAD=/usr/lib64/libpil4dfs.so ior -a DFS",
		},
		"mpich": {
			mpi:    MpiConfig{Flavor: MpiMPICH, Path: "/usr/lib64/mpich/bin/mpirun", Args: []string{"-ppn", "4"}},
			expCmd: "/usr/lib64/mpich/bin/mpirun -hosts c1,c2 -np 8 -genv D_LOG_MASK ERR -genv LD_PRELOAD /usr/lib64/libpil4dfs.so -ppn 4 ior -a DFS",
		},
		"group env": {
			group: &Group{Name: "g", Hosts: []string{"c1"}, Processes: 2, Env: map[string]string{
				"D_LOG_MASK":         "DEBUG",
				"HDF5_VOL_CONNECTOR": "daos",
			}},
			expCmd: "mpirun -H c1 -np 2 --map-by node -x D_LOG_MASK=DEBUG -x HDF5_VOL_CONNECTOR=daos ior -a DFS",
		},
		"unknown flavor": {
			mpi:    MpiConfig{Flavor: "lam"},
			expErr: errors.New("unknown mpi flavor"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			g := group
			if tc.group != nil {
				g = tc.group
			}
			got, err := MpirunCommand(tc.mpi, g, env, ior)
			test.CmpErr(t, tc.expErr, err)
			if tc.expErr != nil {
				return
			}
			test.AssertEqual(t, tc.expCmd, got, "unexpected command")
		})
	}
}

func TestWorkload_IorArgs(t *testing.T) {
	ic := &IorCommand{
		Flags: "-w -F -k -G 1", BlockSize: 4 << 20, TransferSize: 1 << 20, TestFile: "/testFile",
		Pool: "pool1", Container: "cont1", ObjectClass: "EC_2P1GX", ChunkSize: 1 << 20,
	}
	got, err := ic.Args()
	if err != nil {
		t.Fatal(err)
	}
	exp := "ior -a DFS -b 4194304 -t 1048576 -w -F -k -G 1 -o /testFile --dfs.pool=pool1 --dfs.cont=cont1 " +
		"--dfs.oclass=EC_2P1GX --dfs.dir_oclass=EC_2P1GX --dfs.chunk_size=1048576"
	test.AssertEqual(t, exp, strings.Join(got, " "), "unexpected args")

	hdf5 := &IorCommand{
		API: "hdf5", Flags: DefaultWriteReadFlags, BlockSize: 1 << 20, TransferSize: 1 << 20,
		TestFile: "/tmp/daos_dfuse/testfile", Pool: "pool1", Container: "cont1", ObjectClass: "SX",
	}
	got, err = hdf5.Args()
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, "ior -a HDF5 -b 1048576 -t 1048576 -v -W -w -r -R -o /tmp/daos_dfuse/testfile",
		strings.Join(got, " "), "dfs options passed to a non-DFS api")

	ic.BlockSize = 3 << 19
	_, err = ic.Args()
	test.CmpErr(t, errors.New("not a multiple"), err)
}

func testSpec(op Operation) *Spec {
	return &Spec{
		Operation:   op,
		Tier:        TierNVMe,
		FillPercent: 50,
		BlockSize:   1 << 20,
		ObjectClass: "RP_2G1",
		Processes:   4,
		Timeout:     time.Minute,
	}
}

func TestWorkload_LaunchGroups(t *testing.T) {
	for name, tc := range map[string]struct {
		spec      *Spec
		pools     *mockPools
		rules     []*remote.MockRule
		groups    []*Group
		expStatus []Status
		expCodes  []code.Code
		expBlock  uint64
		expInCmd  string
	}{
		"write all pass": {
			spec:  testSpec(OpWrite),
			pools: &mockPools{info: poolInfo(0, 64<<20)},
			rules: []*remote.MockRule{{Contains: "mpirun", Stdout: iorOutput}},
			groups: []*Group{
				{Name: "dfs", Hosts: []string{"c1", "c2"}},
				{Name: "pil4dfs", Hosts: []string{"c3", "c4"}, InterceptLib: "/usr/lib64/libpil4dfs.so"},
			},
			expStatus: []Status{StatusPass, StatusPass},
			expCodes:  []code.Code{code.Unknown, code.Unknown},
			// 64MiB * 50% / 4 workers / 2 replicas = 4MiB
			expBlock: 4 << 20,
			expInCmd: "-b 4194304 -t 1048576 -w -F -k -G 1",
		},
		"one group fails": {
			spec:  testSpec(OpWrite),
			pools: &mockPools{info: poolInfo(0, 64<<20)},
			rules: []*remote.MockRule{
				{Host: "c3", Contains: "mpirun", Stdout: "ERROR: dfs write failed, errno 28\n", Exit: 1},
				{Contains: "mpirun", Stdout: iorOutput},
			},
			groups: []*Group{
				{Name: "a", Hosts: []string{"c1"}},
				{Name: "b", Hosts: []string{"c2"}},
				{Name: "c", Hosts: []string{"c3"}},
			},
			expStatus: []Status{StatusPass, StatusPass, StatusFail},
			expCodes:  []code.Code{code.Unknown, code.Unknown, code.WorkloadFailure},
		},
		"zero block size fails every group": {
			spec:      testSpec(OpWrite),
			pools:     &mockPools{info: poolInfo(0, 1<<20)},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}, {Name: "b", Hosts: []string{"c2"}}},
			expStatus: []Status{StatusFail, StatusFail},
			expCodes:  []code.Code{code.WorkloadBadBlockSize, code.WorkloadBadBlockSize},
		},
		"pool query failure": {
			spec:      testSpec(OpWrite),
			pools:     &mockPools{err: errors.New("pool not found")},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}},
			expStatus: []Status{StatusFail},
			expCodes:  []code.Code{code.Unknown},
		},
		"read reuses block size and read flags": {
			spec:      testSpec(OpRead),
			pools:     &mockPools{err: errors.New("must not be queried")},
			rules:     []*remote.MockRule{{Contains: "mpirun", Stdout: iorOutput}},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}, Processes: 2}},
			expStatus: []Status{StatusPass},
			expCodes:  []code.Code{code.Unknown},
			expBlock:  1 << 20,
			expInCmd:  "-r -R -F -k -G 1",
		},
		"warnings fail when requested": {
			spec: func() *Spec {
				s := testSpec(OpWriteRead)
				s.FailOnWarning = true
				return s
			}(),
			rules:     []*remote.MockRule{{Contains: "mpirun", Stdout: iorOutput}},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}},
			expStatus: []Status{StatusFail},
			expCodes:  []code.Code{code.WorkloadWarnings},
		},
		"missing summary": {
			spec:      testSpec(OpWriteRead),
			rules:     []*remote.MockRule{{Contains: "mpirun", Stdout: "IOR started\n"}},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}},
			expStatus: []Status{StatusFail},
			expCodes:  []code.Code{code.WorkloadFailure},
		},
		"transport error": {
			spec:      testSpec(OpWriteRead),
			rules:     []*remote.MockRule{{Contains: "mpirun", Err: errors.New("ssh: connection lost")}},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}},
			expStatus: []Status{StatusFail},
			expCodes:  []code.Code{code.WorkloadFailure},
		},
		"invalid spec": {
			spec: func() *Spec {
				s := testSpec(OpWrite)
				s.FillPercent = 0
				s.BlockSize = 0
				return s
			}(),
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}},
			expStatus: []Status{StatusFail},
			expCodes:  []code.Code{code.WorkloadBadSpec},
		},
		"fixed block size write": {
			spec: func() *Spec {
				s := testSpec(OpWrite)
				s.FillPercent = 0
				s.BlockSize = 8 << 20
				return s
			}(),
			pools:     &mockPools{err: errors.New("must not be queried")},
			rules:     []*remote.MockRule{{Contains: "mpirun", Stdout: iorOutput}},
			groups:    []*Group{{Name: "a", Hosts: []string{"c1"}}},
			expStatus: []Status{StatusPass},
			expCodes:  []code.Code{code.Unknown},
			expBlock:  8 << 20,
			expInCmd:  "-b 8388608 -t 1048576 -w -F -k -G 1",
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			defer test.ShowBufferOnFailure(t, buf)

			pools := tc.pools
			if pools == nil {
				pools = &mockPools{}
			}
			mock := remote.NewMockExecutor(tc.rules...)
			l := NewLauncher(log, mock, pools, Config{})

			results := l.LaunchGroups(test.Context(t), tc.spec, "pool1", "cont1", tc.groups)
			test.AssertEqual(t, len(tc.groups), len(results), "expected one result per group")

			for i, r := range results {
				test.AssertEqual(t, tc.groups[i].Name, r.Group, "results out of group order")
				test.AssertEqual(t, tc.expStatus[i], r.Status, "unexpected status for "+r.Group)
				if tc.expStatus[i] == StatusPass {
					test.AssertTrue(t, r.Err == nil, "unexpected error on pass")
					test.AssertEqual(t, 2, len(r.Metrics), "expected parsed metrics")
					if tc.expBlock != 0 {
						test.AssertEqual(t, tc.expBlock, r.BlockSize, "unexpected block size")
					}
					if tc.expInCmd != "" {
						test.AssertTrue(t, strings.Contains(r.Command, tc.expInCmd), "unexpected command: "+r.Command)
					}
					continue
				}
				test.AssertTrue(t, r.Err != nil, "expected error on fail")
				if tc.expCodes[i] != code.Unknown {
					test.AssertTrue(t, fault.IsFaultCode(r.Err, tc.expCodes[i]), "unexpected error: "+r.Err.Error())
				}
			}
		})
	}
}

func TestWorkload_LaunchTimeout(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	block := make(chan struct{})
	defer close(block)
	mock := remote.NewMockExecutor(&remote.MockRule{
		Contains: "mpirun",
		Stdout:   iorOutput,
		Hook:     func(string, string) { <-block },
	})

	spec := testSpec(OpWriteRead)
	spec.Timeout = 20 * time.Millisecond

	done := make(chan *Result, 1)
	go func() {
		done <- NewLauncher(log, &slowExecutor{mock}, &mockPools{}, Config{}).
			Launch(test.Context(t), spec, "p", "c", &Group{Name: "a", Hosts: []string{"c1"}})
	}()

	select {
	case r := <-done:
		test.AssertEqual(t, StatusFail, r.Status, "expected timeout failure")
		test.CmpErr(t, errors.New("timed out"), r.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("launch did not honor the workload timeout")
	}
}

// slowExecutor abandons a blocked command when its context expires.
type slowExecutor struct {
	inner remote.Executor
}

func (se *slowExecutor) Exec(ctx context.Context, host, cmd string) (*remote.Result, error) {
	type out struct {
		res *remote.Result
		err error
	}
	ch := make(chan out, 1)
	go func() {
		res, err := se.inner.Exec(ctx, host, cmd)
		ch <- out{res, err}
	}()
	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestWorkload_ResultJSON(t *testing.T) {
	r := &Result{Group: "a", Status: StatusFail, Err: errors.New("boom")}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertTrue(t, strings.Contains(string(data), `"error":"boom"`), "missing error: "+string(data))
	test.AssertTrue(t, strings.Contains(string(data), `"status":"FAIL"`), "missing status: "+string(data))
}

func TestWorkload_Dfuse(t *testing.T) {
	log, buf := logging.NewTestLogger(t.Name())
	defer test.ShowBufferOnFailure(t, buf)

	mock := remote.NewMockExecutor(&remote.MockRule{Host: "c2", Contains: "fusermount", Exit: 1, Stderr: "not mounted"})
	d := NewDfuse(log, mock)

	if err := d.Mount(test.Context(t), []string{"c1", "c2"}, "pool1", "cont1"); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t,
		"mkdir -p /tmp/dharness_dfuse && dfuse --mountpoint=/tmp/dharness_dfuse --pool=pool1 --cont=cont1",
		mock.CallsMatching("dfuse --mountpoint")[0].Cmd, "unexpected mount command")

	err := d.Unmount(test.Context(t), []string{"c1", "c2"})
	test.AssertTrue(t, fault.IsFaultCode(err, code.WorkloadFailure), "expected unmount failure")
	test.CmpErr(t, errors.New("c2: exit 1: not mounted"), err)

	test.AssertEqual(t, "/tmp/dharness_dfuse/testfile", d.TestFile("/testfile"), "unexpected test file")
}

func errStr(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}
