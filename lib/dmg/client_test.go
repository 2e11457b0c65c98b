//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dmg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/common/test"
	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
)

const (
	usageJSON = `{"response":{"host_errors":{},"HostStorage":{"123":{"storage":{
"scm_namespaces":[
 {"blockdev":"pmem1","numa_node":1,"mount":{"path":"/mnt/daos1","total_bytes":200,"avail_bytes":120}},
 {"blockdev":"pmem0","numa_node":0,"mount":{"path":"/mnt/daos0","total_bytes":200,"avail_bytes":100}}],
"nvme_devices":[
 {"pci_addr":"0000:81:00.0","socket_id":1,"smd_devices":[{"uuid":"d1","rank":1,"avail_bytes":1000}]},
 {"pci_addr":"0000:01:00.0","socket_id":0,"smd_devices":[{"uuid":"d0","rank":0,"avail_bytes":2000}]}]
},"hosts":"wolf-[1-2]:10001"}}},"error":null,"status":0}`

	listDevicesJSON = `{"response":{"host_errors":{},"host_storage_map":{"9":{"storage":{"smd_info":{"devices":[
 {"uuid":"aaa","tgt_ids":[0,1],"rank":0,"dev_state":"NORMAL"},
 {"uuid":"bbb","tgt_ids":[2,3],"rank":1,"ctrlr":{"pci_addr":"0000:81:00.0","dev_state":"EVICTED"}}
]}},"hosts":"wolf-1:10001"}}},"error":null,"status":0}`

	poolQueryJSON = `{"response":{"uuid":"p-uuid","label":"pool1","tier_stats":[
 {"total":1000,"free":800},{"total":5000,"free":4000}],
"rebuild":{"status":0,"state":"busy"}},"error":null,"status":0}`

	errorJSON = `{"response":null,"error":"pool create failed: DER_NOSPACE","status":-1007}`
)

func newTestClient(t *testing.T, rules ...*remote.MockRule) (*Client, *remote.MockExecutor, *logging.LogBuffer) {
	t.Helper()

	log, buf := logging.NewTestLogger(t.Name())
	mock := remote.NewMockExecutor(rules...)
	return NewClient(log, mock, Config{Host: "admin-1", ConfigFile: "/etc/daos/dmg.yml", Insecure: true}), mock, buf
}

func TestDmg_StorageUsage(t *testing.T) {
	c, mock, buf := newTestClient(t, &remote.MockRule{Contains: "query usage", Stdout: usageJSON})
	defer test.ShowBufferOnFailure(t, buf)

	got, err := c.StorageUsage(test.Context(t), []string{"wolf-2", "wolf-1"})
	if err != nil {
		t.Fatal(err)
	}

	test.AssertEqual(t, 2, len(got), "unexpected host count")
	test.AssertTrue(t, got["wolf-1"] == got["wolf-2"], "hosts in one set should share storage")
	test.AssertEqual(t, 2, len(got["wolf-1"].ScmNamespaces), "unexpected namespaces")

	calls := mock.CallsMatching("storage query usage")
	test.AssertEqual(t, 1, len(calls), "unexpected calls")
	test.AssertEqual(t, "admin-1", calls[0].Host, "dmg should run on the admin host")
	test.AssertEqual(t, "dmg -j -i -o /etc/daos/dmg.yml storage query usage -l 'wolf-[1-2]'",
		calls[0].Cmd, "unexpected command")
}

func TestDmg_ListDevices(t *testing.T) {
	c, _, buf := newTestClient(t, &remote.MockRule{Contains: "list-devices", Stdout: listDevicesJSON})
	defer test.ShowBufferOnFailure(t, buf)

	got, err := c.ListDevices(test.Context(t), "wolf-1")
	if err != nil {
		t.Fatal(err)
	}
	exp := []*Device{
		{Host: "wolf-1", UUID: "aaa", Rank: 0, State: "NORMAL"},
		{Host: "wolf-1", UUID: "bbb", Rank: 1, State: "EVICTED"},
	}
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected devices (-want, +got):\n%s\n", diff)
	}

	state, err := c.DeviceHealth(test.Context(t), "wolf-1", "BBB")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, DeviceStateEvicted, state, "unexpected state")

	_, err = c.DeviceHealth(test.Context(t), "wolf-1", "ccc")
	test.AssertTrue(t, fault.IsFaultCode(err, code.DmgBadResponse), "expected bad response fault")
}

func TestDmg_Errors(t *testing.T) {
	for name, tc := range map[string]struct {
		rule    *remote.MockRule
		expCode code.Code
		expErr  error
	}{
		"error in envelope": {
			rule:    &remote.MockRule{Stdout: errorJSON, Exit: 1},
			expCode: code.DmgCommandFailed,
		},
		"garbage output with failure": {
			rule:    &remote.MockRule{Stdout: "segfault", Exit: 139},
			expCode: code.RemoteCommandFailed,
		},
		"garbage output with success": {
			rule:    &remote.MockRule{Stdout: "hello"},
			expCode: code.DmgBadResponse,
		},
		"host errors": {
			rule:    &remote.MockRule{Stdout: `{"response":{"host_errors":{"1":{"error":"connection refused","hosts":"wolf-2"}},"HostStorage":{}},"error":null,"status":0}`},
			expCode: code.DmgCommandFailed,
		},
		"transport": {
			rule:   &remote.MockRule{Err: errors.New("ssh: handshake failed")},
			expErr: errors.New("handshake failed"),
		},
	} {
		t.Run(name, func(t *testing.T) {
			c, _, buf := newTestClient(t, tc.rule)
			defer test.ShowBufferOnFailure(t, buf)

			_, err := c.StorageUsage(test.Context(t), []string{"wolf-1"})
			if tc.expErr != nil {
				test.CmpErr(t, tc.expErr, err)
				return
			}
			test.AssertTrue(t, fault.IsFaultCode(err, tc.expCode), "unexpected error: "+err.Error())
		})
	}
}

func TestDmg_Pool(t *testing.T) {
	c, mock, buf := newTestClient(t,
		&remote.MockRule{Contains: "pool create", Stdout: `{"response":{"uuid":"p-uuid","tier_bytes":[100,200]},"error":null,"status":0}`},
		&remote.MockRule{Contains: "pool query", Stdout: poolQueryJSON},
		&remote.MockRule{Contains: "container create", Stdout: `{"response":{"container_uuid":"c-uuid"},"error":null,"status":0}`},
	)
	defer test.ShowBufferOnFailure(t, buf)
	ctx := test.Context(t)

	resp, err := c.PoolCreate(ctx, &PoolCreateReq{Label: "pool1", ScmBytes: 100, NvmeBytes: 200})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, "p-uuid", resp.UUID, "unexpected pool uuid")
	test.AssertEqual(t, "pool1", resp.Label, "unexpected pool label")

	if _, err := c.PoolCreate(ctx, &PoolCreateReq{Label: "pool2", Size: "50%", Ranks: ranklist.RankList{0, 1}}); err != nil {
		t.Fatal(err)
	}
	cmds := mock.CallsMatching("pool create")
	test.AssertEqual(t, "dmg -j -i -o /etc/daos/dmg.yml pool create pool1 --scm-size=100 --nvme-size=200", cmds[0].Cmd, "unexpected command")
	test.AssertEqual(t, "dmg -j -i -o /etc/daos/dmg.yml pool create pool2 --size=50% --ranks=0-1", cmds[1].Cmd, "unexpected command")

	_, err = c.PoolCreate(ctx, &PoolCreateReq{Label: "pool3"})
	test.CmpErr(t, errors.New("requires a size"), err)

	pi, err := c.PoolQuery(ctx, "pool1")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, uint64(800), pi.Tier(MediaTypeScm).Free, "unexpected scm free")
	test.AssertEqual(t, uint64(4000), pi.Tier(MediaTypeNvme).Free, "unexpected nvme free")

	rebuilding, err := c.Rebuilding(ctx, "pool1")
	if err != nil {
		t.Fatal(err)
	}
	test.AssertTrue(t, rebuilding, "expected busy rebuild")

	cont, err := c.ContainerCreate(ctx, &ContainerCreateReq{Pool: "pool1", Label: "cont1", Type: "POSIX", ObjectClass: "EC_2P1GX"})
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, &ContainerCreateResp{UUID: "c-uuid", Label: "cont1"}, cont, "unexpected container")
	test.AssertEqual(t, "daos -j container create pool1 cont1 --type=POSIX --oclass=EC_2P1GX",
		mock.CallsMatching("container create")[0].Cmd, "unexpected command")
}

func TestDmg_System(t *testing.T) {
	c, mock, buf := newTestClient(t,
		&remote.MockRule{Contains: "system stop", Stdout: `{"response":{"results":[{"rank":2,"action":"stop","errored":false,"state":"stopped"}]},"error":null,"status":0}`},
		&remote.MockRule{Contains: "system start", Stdout: `{"response":{"results":[{"rank":2,"action":"start","errored":true,"msg":"timeout"}]},"error":null,"status":0}`},
		&remote.MockRule{Contains: "system query", Stdout: `{"response":{"members":[{"rank":1,"state":"joined"},{"rank":0,"state":"stopped"}]},"error":null,"status":0}`},
		&remote.MockRule{Contains: "version", Stdout: `{"response":{"version":"v2.6.1"},"error":null,"status":0}`},
	)
	defer test.ShowBufferOnFailure(t, buf)
	ctx := test.Context(t)

	if err := c.SystemStop(ctx, ranklist.RankList{2}); err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, "dmg -j -i -o /etc/daos/dmg.yml system stop --ranks=2 --force",
		mock.CallsMatching("system stop")[0].Cmd, "unexpected command")

	err := c.SystemStart(ctx, nil)
	test.AssertTrue(t, fault.IsFaultCode(err, code.DmgCommandFailed), "expected errored rank to fail")

	members, err := c.SystemQuery(ctx)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, ranklist.Rank(0), members[0].Rank, "members should be sorted by rank")

	v, err := c.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	test.AssertEqual(t, "2.6.1", v, "unexpected version")
}

func TestDmg_ParseVersion(t *testing.T) {
	for in, exp := range map[string]string{
		"daos_server version v2.6.0":     "2.6.0",
		"dmg version 2.4.1-rc1":          "2.4.1-rc1",
		"DAOS Control Server v2.7.100\n": "2.7.100",
		"no version here":                "",
	} {
		t.Run(in, func(t *testing.T) {
			test.AssertEqual(t, exp, ParseVersion(in), "unexpected version")
		})
	}
}
