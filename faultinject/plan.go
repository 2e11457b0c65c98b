//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package faultinject

import (
	"fmt"
	"strings"
	"time"

	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/lib/txtfmt"
)

const (
	defaultHealthTimeout       = 2 * time.Minute
	defaultRebuildStartTimeout = 5 * time.Minute
	defaultRebuildTimeout      = 30 * time.Minute
	defaultPollInterval        = 2 * time.Second
)

// Plan describes which devices and ranks to fault. A Plan is read-only
// while an injection sequence runs.
type Plan struct {
	Nodes               int            `yaml:"nodes" json:"nodes"`
	DevicesPerNode      int            `yaml:"devices_per_node" json:"devices_per_node"`
	Rank                *ranklist.Rank `yaml:"rank,omitempty" json:"rank,omitempty"`
	RankDelay           time.Duration  `yaml:"rank_delay,omitempty" json:"rank_delay"`
	HealthTimeout       time.Duration  `yaml:"health_timeout,omitempty" json:"health_timeout"`
	RebuildStartTimeout time.Duration  `yaml:"rebuild_start_timeout,omitempty" json:"rebuild_start_timeout"`
	RebuildTimeout      time.Duration  `yaml:"rebuild_timeout,omitempty" json:"rebuild_timeout"`
	PollInterval        time.Duration  `yaml:"poll_interval,omitempty" json:"poll_interval"`

	// SkipRebuildStart only waits for the pool to be idle, for faults whose
	// rebuild may finish before the first poll.
	SkipRebuildStart bool `yaml:"skip_rebuild_start,omitempty" json:"skip_rebuild_start"`
}

// Empty returns true if the plan would not fault anything.
func (p *Plan) Empty() bool {
	return p == nil || ((p.Nodes == 0 || p.DevicesPerNode == 0) && p.Rank == nil)
}

// WithDefaults returns a copy of the plan with unset waits defaulted.
func (p *Plan) WithDefaults() *Plan {
	cp := *p
	if cp.HealthTimeout == 0 {
		cp.HealthTimeout = defaultHealthTimeout
	}
	if cp.RebuildStartTimeout == 0 {
		cp.RebuildStartTimeout = defaultRebuildStartTimeout
	}
	if cp.RebuildTimeout == 0 {
		cp.RebuildTimeout = defaultRebuildTimeout
	}
	if cp.PollInterval == 0 {
		cp.PollInterval = defaultPollInterval
	}
	return &cp
}

// Validate checks the plan for consistency.
func (p *Plan) Validate() error {
	switch {
	case p == nil:
		return FaultBadPlan("nil plan")
	case p.Nodes < 0 || p.DevicesPerNode < 0:
		return FaultBadPlan("node and device counts must not be negative")
	case (p.Nodes == 0) != (p.DevicesPerNode == 0):
		return FaultBadPlan("nodes and devices_per_node must be set together")
	case p.Rank != nil && *p.Rank == ranklist.NilRank:
		return FaultBadPlan("invalid rank")
	case p.RankDelay < 0 || p.HealthTimeout < 0 || p.RebuildStartTimeout < 0 ||
		p.RebuildTimeout < 0 || p.PollInterval < 0:
		return FaultBadPlan("durations must not be negative")
	}
	return nil
}

func (p *Plan) String() string {
	if p.Empty() {
		return "no faults"
	}
	var parts []string
	if p.Nodes > 0 {
		parts = append(parts, fmt.Sprintf("%d devices on each of %d nodes", p.DevicesPerNode, p.Nodes))
	}
	if p.Rank != nil {
		parts = append(parts, fmt.Sprintf("stop rank %s after %s", p.Rank, p.RankDelay))
	}
	return strings.Join(parts, ", ")
}

// Table renders the plan for display.
func (p *Plan) Table() string {
	wp := p.WithDefaults()
	rank := "None"
	if wp.Rank != nil {
		rank = wp.Rank.String()
	}
	startWait := wp.RebuildStartTimeout.String()
	if wp.SkipRebuildStart {
		startWait = "skipped"
	}
	return txtfmt.FormatEntity("Fault Plan", [][2]string{
		{"Nodes", fmt.Sprint(wp.Nodes)},
		{"Devices per node", fmt.Sprint(wp.DevicesPerNode)},
		{"Rank", rank},
		{"Rank delay", wp.RankDelay.String()},
		{"Health timeout", wp.HealthTimeout.String()},
		{"Rebuild start timeout", startWait},
		{"Rebuild timeout", wp.RebuildTimeout.String()},
		{"Poll interval", wp.PollInterval.String()},
	})
}
