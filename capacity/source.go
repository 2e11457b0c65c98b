//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package capacity

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/remote"
)

// UsageSource reports the per-engine capacity of a node.
type UsageSource interface {
	// Kind names the source for cache keys and logs.
	Kind() string
	EngineUsage(ctx context.Context, host string) (map[int]TierBytes, error)
}

// StorageUsageQuerier is the subset of the cluster client used by
// DmgUsageSource.
type StorageUsageQuerier interface {
	StorageUsage(ctx context.Context, hosts []string) (map[string]*dmg.HostStorage, error)
}

// DmgUsageSource reports the available bytes of running engines via
// "dmg storage query usage". SCM namespaces are keyed by NUMA node and
// NVMe devices by socket.
type DmgUsageSource struct {
	Client StorageUsageQuerier
}

// Kind implements UsageSource.
func (s *DmgUsageSource) Kind() string { return "dmg" }

// EngineUsage implements UsageSource.
func (s *DmgUsageSource) EngineUsage(ctx context.Context, host string) (map[int]TierBytes, error) {
	byHost, err := s.Client.StorageUsage(ctx, []string{host})
	if err != nil {
		return nil, err
	}
	hs, found := byHost[host]
	if !found || hs == nil {
		return nil, FaultMalformed(host, "host missing from storage usage")
	}
	return EngineUsageFromStorage(host, hs)
}

// EngineUsageFromStorage converts a dmg host storage report into per-engine
// available bytes.
func EngineUsageFromStorage(host string, hs *dmg.HostStorage) (map[int]TierBytes, error) {
	engines := make(map[int]TierBytes)
	for _, ns := range hs.ScmNamespaces {
		if ns == nil || ns.Mount == nil {
			return nil, FaultMalformed(host, "scm namespace without mount")
		}
		tb := engines[int(ns.NumaNode)]
		tb.Tier0 += ns.Mount.AvailBytes
		engines[int(ns.NumaNode)] = tb
	}
	for _, nc := range hs.NvmeDevices {
		if nc == nil || nc.SocketID < 0 {
			return nil, FaultMalformed(host, "nvme controller without socket")
		}
		tb := engines[int(nc.SocketID)]
		for _, sd := range nc.SmdDevices {
			tb.Tier1 += sd.AvailBytes
		}
		engines[int(nc.SocketID)] = tb
	}
	if len(engines) == 0 {
		return nil, FaultMalformed(host, "no engine storage reported")
	}
	return engines, nil
}

// EngineDevices lists the devices owned by one engine.
type EngineDevices struct {
	ScmList  []string `yaml:"scm_list" json:"scm_list"`
	BdevList []string `yaml:"bdev_list" json:"bdev_list"`
}

// LsblkSource reports raw device sizes read with lsblk on each node. The
// engines must not hold the devices, see Quiescer.
type LsblkSource struct {
	Exec    remote.Executor
	Engines []EngineDevices
}

// Kind implements UsageSource.
func (s *LsblkSource) Kind() string { return "lsblk" }

const (
	lsblkCmd   = "lsblk -b -d -n -o NAME,SIZE"
	nvmePciCmd = `for d in /sys/block/nvme*n*; do [ -e "$d" ] && echo "${d##*/} $(readlink "$d/device/device")"; done; true`
)

func parseLsblk(host, out string) (map[string]uint64, error) {
	sizes := make(map[string]uint64)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, FaultMalformed(host, fmt.Sprintf("lsblk line %q", line))
		}
		size, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, FaultMalformed(host, fmt.Sprintf("lsblk size %q", fields[1]))
		}
		sizes[fields[0]] = size
	}
	return sizes, nil
}

// parseNvmePci maps PCI addresses to NVMe block device names.
func parseNvmePci(out string) map[string][]string {
	byPci := make(map[string][]string)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		pci := path.Base(fields[1])
		byPci[pci] = append(byPci[pci], fields[0])
	}
	return byPci
}

// EngineUsage implements UsageSource.
func (s *LsblkSource) EngineUsage(ctx context.Context, host string) (map[int]TierBytes, error) {
	if len(s.Engines) == 0 {
		return nil, errors.New("lsblk source requires engine device lists")
	}

	res, err := remote.Run(ctx, s.Exec, host, lsblkCmd)
	if err != nil {
		return nil, err
	}
	sizes, err := parseLsblk(host, res.Stdout)
	if err != nil {
		return nil, err
	}

	var byPci map[string][]string
	for _, ed := range s.Engines {
		if len(ed.BdevList) > 0 {
			res, err := remote.Run(ctx, s.Exec, host, nvmePciCmd)
			if err != nil {
				return nil, err
			}
			byPci = parseNvmePci(res.Stdout)
			break
		}
	}

	engines := make(map[int]TierBytes)
	for idx, ed := range s.Engines {
		var tb TierBytes
		for _, scm := range ed.ScmList {
			size, found := sizes[path.Base(scm)]
			if !found {
				return nil, FaultDeviceNotFound(host, scm)
			}
			tb.Tier0 += size
		}
		for _, pci := range ed.BdevList {
			devs, found := byPci[strings.ToLower(pci)]
			if !found {
				return nil, FaultDeviceNotFound(host, pci)
			}
			for _, dev := range devs {
				tb.Tier1 += sizes[dev]
			}
		}
		engines[idx] = tb
	}
	return engines, nil
}
