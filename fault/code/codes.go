//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package code is a central repository for all harness fault codes.
package code

import (
	"encoding/json"
	"strconv"
)

// Code represents a stable fault code.
//
// NB: All harness errors should register their codes in the
// following blocks in order to avoid conflicts. New codes should
// always be added at the bottom of their respective blocks.
type Code int

// UnmarshalJSON implements a custom unmarshaler
// to convert an int or string code to a Code.
func (c *Code) UnmarshalJSON(data []byte) (err error) {
	var ic int
	if err = json.Unmarshal(data, &ic); err == nil {
		*c = Code(ic)
		return
	}

	var sc string
	if err = json.Unmarshal(data, &sc); err != nil {
		return
	}

	if ic, err = strconv.Atoi(sc); err == nil {
		*c = Code(ic)
	}
	return
}

const (
	// general fault codes
	Unknown Code = iota
	MissingSoftwareDependency
)

const (
	// capacity probe fault codes
	ProbeUnknown Code = iota + 100
	ProbeQueryFailed
	ProbeMalformedOutput
	ProbeDeviceNotFound
	ProbeNoNodes
	ProbeCacheFailed
)

const (
	// device fault injection codes
	DeviceFaultUnknown Code = iota + 200
	DeviceFaultNotEvicted
	DeviceFaultSetFailed
	DeviceFaultInsufficientDevices
	DeviceFaultDeviceBusy
	DeviceFaultRankStopFailed
	DeviceFaultHealthQueryFailed
)

const (
	// rebuild fault codes
	RebuildUnknown Code = iota + 300
	RebuildTimeout
	RebuildStartTimeout
	RebuildQueryFailed
)

const (
	// workload fault codes
	WorkloadUnknown Code = iota + 400
	WorkloadFailure
	WorkloadBadBlockSize
	WorkloadBadSpec
	WorkloadWarnings
)

const (
	// harness config fault codes
	ConfigUnknown Code = iota + 500
	ConfigBadPath
	ConfigNoServers
	ConfigBadHostList
	ConfigBadSize
	ConfigBadFaultPlan
	ConfigBadMargin
)

const (
	// remote execution fault codes
	RemoteUnknown Code = iota + 600
	RemoteConnectFailed
	RemoteCommandFailed
	RemoteBadAuth
)

const (
	// dmg and daos command fault codes
	DmgUnknown Code = iota + 700
	DmgCommandFailed
	DmgBadResponse
	DmgVersionMismatch
)

const (
	// scenario fault codes
	ScenarioUnknown Code = iota + 800
	ScenarioNotFound
	ScenarioDuplicate
	ScenarioCheckFailed
	ScenarioSkipped
)
