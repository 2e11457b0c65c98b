//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package workload

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/remote"
)

// MpiFlavor selects the mpirun command line dialect.
type MpiFlavor string

const (
	// MpiOpenMPI passes environment with -x.
	MpiOpenMPI MpiFlavor = "openmpi"
	// MpiMPICH passes environment with -genv.
	MpiMPICH MpiFlavor = "mpich"
)

// MpiConfig describes the MPI launcher.
type MpiConfig struct {
	Flavor MpiFlavor `yaml:"flavor,omitempty"`
	Path   string    `yaml:"path,omitempty"`
	Args   []string  `yaml:"args,omitempty"`
}

// IorCommand holds the parameters of one IOR invocation.
type IorCommand struct {
	Path         string
	API          string
	Flags        string
	BlockSize    uint64
	TransferSize uint64
	ChunkSize    uint64
	SegmentCount int
	TestFile     string
	Pool         string
	Container    string
	ObjectClass  string
}

// Args returns the IOR argument list.
func (ic *IorCommand) Args() ([]string, error) {
	if ic.BlockSize == 0 || ic.TransferSize == 0 {
		return nil, errors.New("ior requires block and transfer sizes")
	}
	if ic.BlockSize%ic.TransferSize != 0 {
		return nil, errors.Errorf("ior block size %d is not a multiple of transfer size %d",
			ic.BlockSize, ic.TransferSize)
	}

	path := ic.Path
	if path == "" {
		path = "ior"
	}
	api := strings.ToUpper(ic.API)
	if api == "" {
		api = "DFS"
	}

	args := []string{path, "-a", api,
		"-b", strconv.FormatUint(ic.BlockSize, 10),
		"-t", strconv.FormatUint(ic.TransferSize, 10),
	}
	args = append(args, strings.Fields(ic.Flags)...)
	if ic.SegmentCount > 0 {
		args = append(args, "-s", strconv.Itoa(ic.SegmentCount))
	}
	if ic.TestFile != "" {
		args = append(args, "-o", ic.TestFile)
	}

	if api == "DFS" {
		args = append(args, "--dfs.pool="+ic.Pool, "--dfs.cont="+ic.Container)
		if ic.ObjectClass != "" {
			args = append(args, "--dfs.oclass="+ic.ObjectClass, "--dfs.dir_oclass="+ic.ObjectClass)
		}
		if ic.ChunkSize > 0 {
			args = append(args, "--dfs.chunk_size="+strconv.FormatUint(ic.ChunkSize, 10))
		}
	}
	return args, nil
}

// MpirunCommand wraps the IOR arguments in an mpirun command line for the
// group, preloading the interception library when one is set. Group
// environment overrides env.
func MpirunCommand(mpi MpiConfig, group *Group, env map[string]string, ior []string) (string, error) {
	if len(group.Hosts) == 0 {
		return "", errors.Errorf("group %s has no hosts", group.Name)
	}
	if group.Processes <= 0 {
		return "", errors.Errorf("group %s has no processes", group.Name)
	}

	path := mpi.Path
	if path == "" {
		path = "mpirun"
	}
	hosts := strings.Join(group.Hosts, ",")

	allEnv := make(map[string]string, len(env)+len(group.Env)+1)
	for _, e := range []map[string]string{env, group.Env} {
		for k, v := range e {
			allEnv[k] = v
		}
	}
	if group.InterceptLib != "" {
		allEnv["LD_PRELOAD"] = group.InterceptLib
	}

	var args []string
	switch mpi.Flavor {
	case MpiMPICH:
		args = []string{path, "-hosts", hosts, "-np", strconv.Itoa(group.Processes)}
		for _, k := range sortedKeys(allEnv) {
			args = append(args, "-genv", k, allEnv[k])
		}
	case MpiOpenMPI, "":
		args = []string{path, "-H", hosts, "-np", strconv.Itoa(group.Processes), "--map-by", "node"}
		for _, k := range sortedKeys(allEnv) {
			args = append(args, "-x", k+"="+allEnv[k])
		}
	default:
		return "", errors.Errorf("unknown mpi flavor %q", mpi.Flavor)
	}
	args = append(args, mpi.Args...)
	args = append(args, ior...)

	return remote.JoinArgs(args...), nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
