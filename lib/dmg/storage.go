//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dmg

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/hostlist"
	"github.com/daos-stack/dharness/lib/ranklist"
)

type storageResp struct {
	hostErrorsResp
	HostStorage    map[string]*HostStorageSet `json:"HostStorage"`
	HostStorageMap map[string]*HostStorageSet `json:"host_storage_map"`
}

// byHost flattens the host storage sets into a per-host map.
func (sr *storageResp) byHost() (map[string]*HostStorage, error) {
	out := make(map[string]*HostStorage)
	for _, sets := range []map[string]*HostStorageSet{sr.HostStorage, sr.HostStorageMap} {
		for _, hss := range sets {
			if hss == nil || hss.HostStorage == nil {
				return nil, errors.New("host storage set missing storage")
			}
			hosts, err := ExpandHosts(hss.Hosts)
			if err != nil {
				return nil, err
			}
			for _, h := range hosts {
				out[h] = hss.HostStorage
			}
		}
	}
	return out, nil
}

func (c *Client) queryStorage(ctx context.Context, hosts []string, args ...string) (map[string]*HostStorage, error) {
	if len(hosts) > 0 {
		args = append(args, "-l", hostlist.Compress(hosts))
	}
	cmd := c.dmgCmd(args...)

	var resp storageResp
	if err := c.run(ctx, &resp, cmd); err != nil {
		return nil, err
	}
	if err := resp.check(cmd); err != nil {
		return nil, err
	}
	hs, err := resp.byHost()
	if err != nil {
		return nil, FaultBadResponse(cmd, err)
	}
	return hs, nil
}

// StorageUsage returns the per-host storage usage of the supplied hosts.
func (c *Client) StorageUsage(ctx context.Context, hosts []string) (map[string]*HostStorage, error) {
	return c.queryStorage(ctx, hosts, "storage", "query", "usage")
}

// StorageScan returns the per-host storage inventory of the supplied hosts.
func (c *Client) StorageScan(ctx context.Context, hosts []string) (map[string]*HostStorage, error) {
	return c.queryStorage(ctx, hosts, "storage", "scan")
}

func smdDevices(hs *HostStorage) []*SmdDevice {
	if hs == nil {
		return nil
	}
	if hs.SmdInfo != nil && len(hs.SmdInfo.Devices) > 0 {
		return hs.SmdInfo.Devices
	}
	var out []*SmdDevice
	for _, nc := range hs.NvmeDevices {
		out = append(out, nc.SmdDevices...)
	}
	return out
}

// ListDevices returns the NVMe devices known to the engines on host.
func (c *Client) ListDevices(ctx context.Context, host string) ([]*Device, error) {
	hs, err := c.queryStorage(ctx, []string{host}, "storage", "query", "list-devices")
	if err != nil {
		return nil, err
	}

	var out []*Device
	for _, sd := range smdDevices(hs[host]) {
		out = append(out, &Device{Host: host, UUID: sd.UUID, Rank: sd.Rank, State: sd.State()})
	}
	return out, nil
}

// DeviceHealth returns the health state of a device on host.
func (c *Client) DeviceHealth(ctx context.Context, host, devUUID string) (string, error) {
	args := []string{"storage", "query", "list-devices", "-u", devUUID}
	hs, err := c.queryStorage(ctx, []string{host}, args...)
	if err != nil {
		return "", err
	}

	for _, sd := range smdDevices(hs[host]) {
		if strings.EqualFold(sd.UUID, devUUID) {
			return sd.State(), nil
		}
	}
	return "", FaultBadResponse(c.dmgCmd(args...), errors.Errorf("device %s not reported by %s", devUUID, host))
}

// SetDeviceFaulty marks a device on host as faulty.
func (c *Client) SetDeviceFaulty(ctx context.Context, host, devUUID string) error {
	cmd := c.dmgCmd("storage", "set", "nvme-faulty", "-u", devUUID, "-f", "-l", host)

	var resp storageResp
	if err := c.run(ctx, &resp, cmd); err != nil {
		return err
	}
	return resp.check(cmd)
}

// DeviceRank returns the rank owning the device, if reported.
func (d *Device) DeviceRank() *ranklist.Rank {
	if d.Rank == ranklist.NilRank {
		return nil
	}
	return d.Rank.Ptr()
}
