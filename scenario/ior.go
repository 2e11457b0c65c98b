//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/orchestrator"
	"github.com/daos-stack/dharness/workload"
)

const (
	iorInterceptName = "ior-intercept"
	iorHardName      = "ior-hard"
	iorHdf5Name      = "ior-hdf5"
	iorHdf5VolName   = "ior-hdf5-vol"

	// DefaultInterceptLib is the IO interception library preloaded by
	// the intercept scenario.
	DefaultInterceptLib = "/usr/lib64/libioil.so"
	// DefaultHdf5PluginPath is the directory holding the DAOS HDF5 VOL
	// connector.
	DefaultHdf5PluginPath = "/usr/lib64/mpich/lib"
	hdf5VolConnector      = "daos"
	defaultPoolSize       = "100%"
	defaultPosixBlock     = humanize.GiByte
)

// RegisterIor registers the IOR data integrity scenarios.
func RegisterIor(r *Registry) error {
	for _, s := range []*Scenario{
		{
			Name: iorInterceptName,
			Description: "run IOR write/read verification through dfuse on client groups " +
				"with and without the interception library",
			Tags: []string{"ior", "dfuse", "daosio"},
			Run:  runIorIntercept,
		},
		{
			Name:        iorHardName,
			Description: "write with IOR, then read back and verify from the same container",
			Tags:        []string{"ior", "ec"},
			Run:         runIorHard,
		},
		{
			Name:        iorHdf5Name,
			Description: "run IOR write/read verification with the HDF5 api on a single shared file",
			Tags:        []string{"ior", "hdf5", "daosio"},
			Run:         runIorHdf5,
		},
		{
			Name:        iorHdf5VolName,
			Description: "run IOR write/read verification with the HDF5 api through the DAOS VOL connector",
			Tags:        []string{"ior", "hdf5", "hdf5_vol", "daosio"},
			Run:         runIorHdf5Vol,
		},
	} {
		if err := r.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// scenarioPool creates the pool configured for a scenario, defaulting to
// all of the available storage.
func (env *Env) scenarioPool(ctx context.Context, prefix string) (*dmg.PoolCreateResp, func(), error) {
	pc := env.Config.Pool
	req := &dmg.PoolCreateReq{
		Label:     env.label(prefix),
		Size:      pc.Size,
		ScmBytes:  pc.ScmSize.Bytes(),
		NvmeBytes: pc.NvmeSize.Bytes(),
	}
	if req.Size == "" && req.ScmBytes == 0 {
		req.Size = defaultPoolSize
	}
	return env.createPool(ctx, req)
}

// interceptGroups splits the clients into a group running with the
// interception library and a group of the last client running without it.
func interceptGroups(clients []string, lib string, testFile func(string) string) []*workload.Group {
	last := len(clients) - 1
	return []*workload.Group{
		{
			Name:         "intercept",
			Hosts:        append([]string{}, clients[:last]...),
			InterceptLib: lib,
			TestFile:     testFile("testfile_0_intercept"),
		},
		{
			Name:     "dfuse",
			Hosts:    []string{clients[last]},
			TestFile: testFile("testfile_1"),
		},
	}
}

func (env *Env) dfuse() *workload.Dfuse {
	if env.Dfuse != nil {
		return env.Dfuse
	}
	d := workload.NewDfuse(env.Log, env.Exec)
	if p := env.Config.Workload.DfusePath; p != "" {
		d.Path = p
	}
	if m := env.Config.Workload.DfuseMount; m != "" {
		d.MountDir = m
	}
	return d
}

func noteGroupMetrics(out *Outcome, v *orchestrator.Verdict, groups []*workload.Group) {
	byName := make(map[string]*workload.Group, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}
	for _, r := range v.Results {
		g, found := byName[r.Group]
		if !found {
			continue
		}
		with := "without"
		if g.InterceptLib != "" {
			with = "with"
		}
		var ops []string
		for _, m := range r.Metrics {
			ops = append(ops, fmt.Sprintf("%s %.2f MiB/s", m.Operation, m.MeanMiB))
		}
		out.Notef("%s %s interception library: %s %s",
			english.Plural(len(g.Hosts), "client", ""), with, r.Status, strings.Join(ops, ", "))
	}
}

// dfuseBlockSize fills in the block size of a write/read run over dfuse.
func (env *Env) dfuseBlockSize(name string, spec *workload.Spec) error {
	if spec.BlockSize != 0 {
		return nil
	}
	block, err := env.sizeParam(name, "block_size", defaultPosixBlock)
	if err != nil {
		return err
	}
	spec.BlockSize = block
	return nil
}

// runOnDfuse creates the scenario's pool and container, mounts them with
// dfuse on every client and runs the groups built against the mount.
func (env *Env) runOnDfuse(ctx context.Context, name, prefix string, spec *workload.Spec,
	mkGroups func(testFile func(string) string) []*workload.Group) ([]*workload.Group, *orchestrator.Verdict, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	clients := env.Config.Clients

	pool, destroy, err := env.scenarioPool(ctx, prefix)
	if err != nil {
		return nil, nil, err
	}
	defer destroy()
	cont, err := env.createContainer(ctx, pool.Label)
	if err != nil {
		return nil, nil, err
	}

	dfuse := env.dfuse()
	if err := dfuse.Mount(ctx, clients, pool.Label, cont.Label); err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := dfuse.Unmount(context.Background(), clients); err != nil {
			env.Log.Errorf("%s: %s", name, err)
		}
	}()

	groups := mkGroups(dfuse.TestFile)
	tc := env.testContext(name).WithPool(pool.Label, cont.Label)
	return groups, env.orchestrator().Run(ctx, tc, spec, groups, nil), nil
}

func runIorIntercept(ctx context.Context, env *Env, out *Outcome) error {
	if len(env.Config.Clients) < 2 {
		return FaultSkipped("at least two clients are required")
	}
	lib := env.param(iorInterceptName, "intercept_lib", DefaultInterceptLib)

	spec := env.Config.Spec
	spec.Operation = workload.OpWriteRead
	spec.API = "POSIX"
	if err := env.dfuseBlockSize(iorInterceptName, &spec); err != nil {
		return err
	}

	groups, v, err := env.runOnDfuse(ctx, iorInterceptName, "intercept", &spec,
		func(testFile func(string) string) []*workload.Group {
			return interceptGroups(env.Config.Clients, lib, testFile)
		})
	if err != nil {
		return err
	}
	env.recordVerdict(out, v)
	noteGroupMetrics(out, v, groups)
	return nil
}

// hdf5Spec returns a write/read verification spec for the HDF5 api.
func (env *Env) hdf5Spec(name string) (*workload.Spec, error) {
	spec := env.Config.Spec
	spec.Operation = workload.OpWriteRead
	spec.API = "HDF5"
	spec.ObjectClass = env.param(name, "object_class", spec.ObjectClass)
	if err := env.dfuseBlockSize(name, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// hdf5Groups returns one group of every client sharing a single file on the
// dfuse mount.
func hdf5Groups(clients []string, vars map[string]string, testFile func(string) string) []*workload.Group {
	return []*workload.Group{{
		Name:     "hdf5",
		Hosts:    append([]string{}, clients...),
		TestFile: testFile("testfile"),
		Env:      vars,
	}}
}

func runIorHdf5(ctx context.Context, env *Env, out *Outcome) error {
	if len(env.Config.Clients) == 0 {
		return FaultSkipped("no clients configured")
	}
	spec, err := env.hdf5Spec(iorHdf5Name)
	if err != nil {
		return err
	}

	_, v, err := env.runOnDfuse(ctx, iorHdf5Name, "hdf5", spec,
		func(testFile func(string) string) []*workload.Group {
			return hdf5Groups(env.Config.Clients, nil, testFile)
		})
	if err != nil {
		return err
	}
	env.recordVerdict(out, v)
	return nil
}

func runIorHdf5Vol(ctx context.Context, env *Env, out *Outcome) error {
	if len(env.Config.Clients) == 0 {
		return FaultSkipped("no clients configured")
	}
	spec, err := env.hdf5Spec(iorHdf5VolName)
	if err != nil {
		return err
	}
	vars := map[string]string{
		"HDF5_VOL_CONNECTOR": hdf5VolConnector,
		"HDF5_PLUGIN_PATH":   env.param(iorHdf5VolName, "plugin_path", DefaultHdf5PluginPath),
	}

	_, v, err := env.runOnDfuse(ctx, iorHdf5VolName, "hdf5vol", spec,
		func(testFile func(string) string) []*workload.Group {
			return hdf5Groups(env.Config.Clients, vars, testFile)
		})
	if err != nil {
		return err
	}
	env.recordVerdict(out, v)
	out.Notef("HDF5 VOL connector %s from %s", vars["HDF5_VOL_CONNECTOR"], vars["HDF5_PLUGIN_PATH"])
	return nil
}

func runIorHard(ctx context.Context, env *Env, out *Outcome) error {
	groups, err := groupsOrSkip(env)
	if err != nil {
		return err
	}

	spec := env.Config.Spec
	spec.Operation = workload.OpWrite
	if spec.BlockSize == 0 {
		block, err := env.sizeParam(iorHardName, "block_size", 0)
		if err != nil {
			return err
		}
		spec.BlockSize = block
	}
	if spec.BlockSize != 0 {
		// a configured block size replaces fill sizing
		spec.FillPercent = 0
	}
	spec.Flags = env.param(iorHardName, "flags", spec.Flags)
	spec.ReadFlags = env.param(iorHardName, "read_flags", spec.ReadFlags)
	spec.ObjectClass = env.param(iorHardName, "object_class", spec.ObjectClass)
	if err := spec.Validate(); err != nil {
		return err
	}

	pool, destroy, err := env.scenarioPool(ctx, "hard")
	if err != nil {
		return err
	}
	defer destroy()
	cont, err := env.createContainer(ctx, pool.Label)
	if err != nil {
		return err
	}

	orch := env.orchestrator()
	tc := env.testContext(iorHardName).WithPool(pool.Label, cont.Label)
	write := orch.Run(ctx, tc, &spec, groups, nil)
	env.recordVerdict(out, write)
	if !write.Passed() {
		return nil
	}

	read := spec
	read.Operation = workload.OpRead
	for _, r := range write.Results {
		if r.BlockSize > 0 {
			read.BlockSize = r.BlockSize
			break
		}
	}
	tc.Name = iorHardName + "-read"
	env.recordVerdict(out, orch.Run(ctx, tc, &read, groups, nil))
	return nil
}
