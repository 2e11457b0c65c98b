//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package faultinject

import (
	"context"
	"sync"

	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/ranklist"
)

// MockClusterConfig configures a MockCluster.
type MockClusterConfig struct {
	// Devices maps host to its device inventory.
	Devices map[string][]*dmg.Device
	// NeverEvict lists device UUIDs that stay in their original state
	// after being marked faulty.
	NeverEvict map[string]bool
	ListErr    error
	SetErr     error
	HealthErr  error
	StopErr    error
	// RebuildSequence is returned by successive Rebuilding calls; the last
	// value repeats. An empty sequence reports idle.
	RebuildSequence []bool
	RebuildErr      error
}

// MockCluster implements Cluster and RebuildObserver for tests.
type MockCluster struct {
	sync.Mutex
	cfg          MockClusterConfig
	faulty       map[string]bool
	FaultedOrder []string
	// FaultedAfter holds the number of Rebuilding calls made before each
	// device in FaultedOrder was marked faulty.
	FaultedAfter []int
	StoppedRanks []ranklist.Rank
	HealthCalls  int
	RebuildCalls int
}

// NewMockCluster returns a MockCluster.
func NewMockCluster(cfg MockClusterConfig) *MockCluster {
	return &MockCluster{cfg: cfg, faulty: make(map[string]bool)}
}

func (mc *MockCluster) ListDevices(_ context.Context, host string) ([]*dmg.Device, error) {
	mc.Lock()
	defer mc.Unlock()

	if mc.cfg.ListErr != nil {
		return nil, mc.cfg.ListErr
	}
	var out []*dmg.Device
	for _, d := range mc.cfg.Devices[host] {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (mc *MockCluster) SetDeviceFaulty(_ context.Context, host, devUUID string) error {
	mc.Lock()
	defer mc.Unlock()

	if mc.cfg.SetErr != nil {
		return mc.cfg.SetErr
	}
	mc.faulty[devUUID] = true
	mc.FaultedOrder = append(mc.FaultedOrder, devUUID)
	mc.FaultedAfter = append(mc.FaultedAfter, mc.RebuildCalls)
	return nil
}

func (mc *MockCluster) DeviceHealth(_ context.Context, host, devUUID string) (string, error) {
	mc.Lock()
	defer mc.Unlock()

	mc.HealthCalls++
	if mc.cfg.HealthErr != nil {
		return "", mc.cfg.HealthErr
	}
	if mc.faulty[devUUID] && !mc.cfg.NeverEvict[devUUID] {
		return dmg.DeviceStateEvicted, nil
	}
	return "NORMAL", nil
}

func (mc *MockCluster) SystemStop(_ context.Context, ranks ranklist.RankList) error {
	mc.Lock()
	defer mc.Unlock()

	if mc.cfg.StopErr != nil {
		return mc.cfg.StopErr
	}
	mc.StoppedRanks = append(mc.StoppedRanks, ranks...)
	return nil
}

func (mc *MockCluster) Rebuilding(_ context.Context, _ string) (bool, error) {
	mc.Lock()
	defer mc.Unlock()

	idx := mc.RebuildCalls
	mc.RebuildCalls++
	if mc.cfg.RebuildErr != nil {
		return false, mc.cfg.RebuildErr
	}
	if len(mc.cfg.RebuildSequence) == 0 {
		return false, nil
	}
	if idx >= len(mc.cfg.RebuildSequence) {
		idx = len(mc.cfg.RebuildSequence) - 1
	}
	return mc.cfg.RebuildSequence[idx], nil
}

// Faulted returns the device UUIDs marked faulty, in order.
func (mc *MockCluster) Faulted() []string {
	mc.Lock()
	defer mc.Unlock()

	if len(mc.FaultedOrder) == 0 {
		return nil
	}
	return append([]string{}, mc.FaultedOrder...)
}
