//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package capacity discovers the usable two-tier storage capacity of a set
// of server nodes.
package capacity

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// DefaultMargin is the fraction of the smallest node's capacity that is
// considered usable.
const DefaultMargin = 0.96

// TierBytes holds one byte count per storage tier.
type TierBytes struct {
	Tier0 uint64 `json:"tier0"`
	Tier1 uint64 `json:"tier1"`
}

func (tb TierBytes) String() string {
	return fmt.Sprintf("scm=%s nvme=%s", humanize.IBytes(tb.Tier0), humanize.IBytes(tb.Tier1))
}

// NodeCapacity is the capacity of a single node, broken down by engine index.
type NodeCapacity struct {
	Host    string            `json:"host"`
	Engines map[int]TierBytes `json:"engines"`
	TierBytes
}

// NewNodeCapacity sums the per-engine capacities of a node.
func NewNodeCapacity(host string, engines map[int]TierBytes) *NodeCapacity {
	nc := &NodeCapacity{Host: host, Engines: engines}
	for _, idx := range nc.EngineIndexes() {
		nc.Tier0 += engines[idx].Tier0
		nc.Tier1 += engines[idx].Tier1
	}
	return nc
}

// EngineIndexes returns the sorted engine indexes of the node.
func (nc *NodeCapacity) EngineIndexes() []int {
	idxs := make([]int, 0, len(nc.Engines))
	for idx := range nc.Engines {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	return idxs
}

// FleetCapacity is the usable per-tier capacity that every node can offer.
type FleetCapacity struct {
	TierBytes
	Margin float64 `json:"margin"`
	Nodes  int     `json:"nodes"`
}

func (fc *FleetCapacity) String() string {
	return fmt.Sprintf("%d nodes, margin %g: %s", fc.Nodes, fc.Margin, fc.TierBytes)
}

// marginRat converts the margin to an exact rational using its shortest
// decimal representation, so that 0.96 is treated as 24/25.
func marginRat(margin float64) (*big.Rat, error) {
	if margin <= 0 || margin > 1 {
		return nil, errors.Errorf("margin %g out of range (0,1]", margin)
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(margin, 'f', -1, 64))
	if !ok {
		return nil, errors.Errorf("invalid margin %g", margin)
	}
	return r, nil
}

// ApplyMargin returns floor(margin * value) using exact arithmetic.
func ApplyMargin(value uint64, margin float64) (uint64, error) {
	r, err := marginRat(margin)
	if err != nil {
		return 0, err
	}
	prod := new(big.Int).Mul(new(big.Int).SetUint64(value), r.Num())
	return prod.Quo(prod, r.Denom()).Uint64(), nil
}

// Reduce computes the fleet capacity as floor(margin * min over nodes) for
// each tier.
func Reduce(nodes []*NodeCapacity, margin float64) (*FleetCapacity, error) {
	if len(nodes) == 0 {
		return nil, FaultNoNodes
	}

	min := nodes[0].TierBytes
	for _, nc := range nodes[1:] {
		if nc.Tier0 < min.Tier0 {
			min.Tier0 = nc.Tier0
		}
		if nc.Tier1 < min.Tier1 {
			min.Tier1 = nc.Tier1
		}
	}

	fc := &FleetCapacity{Margin: margin, Nodes: len(nodes)}
	var err error
	if fc.Tier0, err = ApplyMargin(min.Tier0, margin); err != nil {
		return nil, err
	}
	if fc.Tier1, err = ApplyMargin(min.Tier1, margin); err != nil {
		return nil, err
	}
	return fc, nil
}
