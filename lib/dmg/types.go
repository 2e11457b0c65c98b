//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dmg

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/ranklist"
)

// MediaType identifies a storage tier.
type MediaType int32

const (
	// MediaTypeScm is the byte-addressable tier.
	MediaTypeScm MediaType = iota
	// MediaTypeNvme is the block-addressable tier.
	MediaTypeNvme
)

var mediaTypeNames = map[MediaType]string{
	MediaTypeScm:  "scm",
	MediaTypeNvme: "nvme",
}

func (mt MediaType) String() string {
	if s, ok := mediaTypeNames[mt]; ok {
		return s
	}
	return "unknown"
}

func (mt MediaType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + mt.String() + `"`), nil
}

func (mt *MediaType) UnmarshalJSON(data []byte) error {
	str := strings.ToLower(strings.Trim(string(data), "\""))
	if n, err := strconv.Atoi(str); err == nil {
		*mt = MediaType(n)
		return nil
	}
	for k, v := range mediaTypeNames {
		if v == str {
			*mt = k
			return nil
		}
	}
	return errors.Errorf("failed to unmarshal MediaType %q", str)
}

// RebuildState is the observed state of a pool rebuild.
type RebuildState int32

const (
	// RebuildStateIdle indicates that no rebuild is in progress.
	RebuildStateIdle RebuildState = iota
	// RebuildStateDone indicates that the last rebuild completed.
	RebuildStateDone
	// RebuildStateBusy indicates that a rebuild is in progress.
	RebuildStateBusy
)

var rebuildStateNames = map[RebuildState]string{
	RebuildStateIdle: "idle",
	RebuildStateDone: "done",
	RebuildStateBusy: "busy",
}

func (rs RebuildState) String() string {
	if s, ok := rebuildStateNames[rs]; ok {
		return s
	}
	return "unknown"
}

func (rs RebuildState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + rs.String() + `"`), nil
}

func (rs *RebuildState) UnmarshalJSON(data []byte) error {
	str := strings.ToLower(strings.Trim(string(data), "\""))
	for k, v := range rebuildStateNames {
		if v == str {
			*rs = k
			return nil
		}
	}
	return errors.Errorf("failed to unmarshal RebuildState %q", str)
}

// DeviceStateEvicted is the health state of a device that has been
// excluded from service after being marked faulty.
const DeviceStateEvicted = "EVICTED"

// SmdDevice describes an NVMe device as known to an engine's metadata.
type SmdDevice struct {
	UUID       string        `json:"uuid"`
	TargetIDs  []int32       `json:"tgt_ids"`
	Rank       ranklist.Rank `json:"rank"`
	DevState   string        `json:"dev_state,omitempty"`
	TotalBytes uint64        `json:"total_bytes"`
	AvailBytes uint64        `json:"avail_bytes"`
	Ctrlr      *SmdCtrlr     `json:"ctrlr,omitempty"`
}

// SmdCtrlr is the controller view of an SMD device.
type SmdCtrlr struct {
	PciAddr  string `json:"pci_addr"`
	DevState string `json:"dev_state"`
}

// State returns the device health state, preferring the controller's view.
func (sd *SmdDevice) State() string {
	if sd.Ctrlr != nil && sd.Ctrlr.DevState != "" {
		return strings.ToUpper(sd.Ctrlr.DevState)
	}
	return strings.ToUpper(sd.DevState)
}

// Device is a device UUID together with the host that owns it.
type Device struct {
	Host  string        `json:"host"`
	UUID  string        `json:"uuid"`
	Rank  ranklist.Rank `json:"rank"`
	State string        `json:"state"`
}

// ScmNamespace describes a mounted pmem namespace.
type ScmNamespace struct {
	UUID     string    `json:"uuid"`
	BlockDev string    `json:"blockdev"`
	NumaNode uint32    `json:"numa_node"`
	Size     uint64    `json:"size"`
	Mount    *ScmMount `json:"mount"`
}

// ScmMount describes the filesystem mounted on a pmem namespace.
type ScmMount struct {
	Path       string `json:"path"`
	TotalBytes uint64 `json:"total_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
	Rank       uint32 `json:"rank"`
}

// NvmeController describes an NVMe SSD and the SMD devices on it.
type NvmeController struct {
	PciAddr    string       `json:"pci_addr"`
	Model      string       `json:"model"`
	SocketID   int32        `json:"socket_id"`
	SmdDevices []*SmdDevice `json:"smd_devices"`
}

// HostStorage describes the storage reported by a set of hosts.
type HostStorage struct {
	NvmeDevices   []*NvmeController `json:"nvme_devices"`
	ScmNamespaces []*ScmNamespace   `json:"scm_namespaces"`
	SmdInfo       *SmdInfo          `json:"smd_info"`
}

// SmdInfo lists the SMD devices of a host.
type SmdInfo struct {
	Devices []*SmdDevice `json:"devices"`
}

// HostStorageSet pairs a storage description with the hosts that share it.
type HostStorageSet struct {
	HostStorage *HostStorage `json:"storage"`
	Hosts       string       `json:"hosts"`
}

// EngineUsage is the available capacity of a single engine.
type EngineUsage struct {
	Index     int    `json:"index"`
	ScmBytes  uint64 `json:"scm_bytes"`
	NvmeBytes uint64 `json:"nvme_bytes"`
}

// Member is a system member as reported by system query.
type Member struct {
	Rank  ranklist.Rank `json:"rank"`
	UUID  string        `json:"uuid"`
	Addr  string        `json:"addr"`
	State string        `json:"state"`
}

// MemberResult is the outcome of a system stop or start for one rank.
type MemberResult struct {
	Rank    ranklist.Rank `json:"rank"`
	Action  string        `json:"action"`
	Errored bool          `json:"errored"`
	Msg     string        `json:"msg"`
	State   string        `json:"state"`
}

// TierUsage describes one pool storage tier.
type TierUsage struct {
	Total     uint64    `json:"total"`
	Free      uint64    `json:"free"`
	MediaType MediaType `json:"media_type"`
}

// PoolInfo is the subset of pool query output used by the harness.
type PoolInfo struct {
	UUID      string         `json:"uuid"`
	Label     string         `json:"label,omitempty"`
	TierStats []*TierUsage   `json:"tier_stats"`
	Rebuild   *RebuildStatus `json:"rebuild"`
}

// RebuildStatus is the rebuild section of pool query output.
type RebuildStatus struct {
	Status int32        `json:"status"`
	State  RebuildState `json:"state"`
}

// Tier returns the usage of the requested tier, or nil.
func (pi *PoolInfo) Tier(mt MediaType) *TierUsage {
	for _, ts := range pi.TierStats {
		if ts != nil && ts.MediaType == mt {
			return ts
		}
	}
	return nil
}

// normalize assigns media types by position when the output omits them.
func (pi *PoolInfo) normalize() {
	for _, ts := range pi.TierStats {
		if ts != nil && ts.MediaType != MediaTypeScm {
			return
		}
	}
	for i, ts := range pi.TierStats {
		if ts != nil {
			ts.MediaType = MediaType(i)
		}
	}
}

// Rebuilding indicates whether a rebuild is in progress.
func (pi *PoolInfo) Rebuilding() bool {
	return pi.Rebuild != nil && pi.Rebuild.State == RebuildStateBusy
}

// PoolCreateReq describes a pool to create. Either Size (e.g. "50%") or
// explicit tier sizes must be set.
type PoolCreateReq struct {
	Label     string
	Size      string
	ScmBytes  uint64
	NvmeBytes uint64
	Ranks     ranklist.RankList
	Props     []string
}

// PoolCreateResp describes a created pool.
type PoolCreateResp struct {
	UUID      string   `json:"uuid"`
	Label     string   `json:"-"`
	TierBytes []uint64 `json:"tier_bytes"`
}

// ContainerCreateReq describes a container to create.
type ContainerCreateReq struct {
	Pool        string
	Label       string
	Type        string
	ObjectClass string
	Props       []string
}

// ContainerCreateResp describes a created container.
type ContainerCreateResp struct {
	UUID  string `json:"container_uuid"`
	Label string `json:"container_label"`
}
