//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package ranklist provides the engine rank type and rank set parsing.
package ranklist

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/hostlist"
)

// Rank is the identifier of an engine within a storage system.
type Rank uint32

// NilRank is the zero-value placeholder for an unset rank.
const NilRank Rank = math.MaxUint32

func (r Rank) String() string {
	if r == NilRank {
		return "NilRank"
	}
	return strconv.FormatUint(uint64(r), 10)
}

// Uint32 returns the rank as a uint32.
func (r Rank) Uint32() uint32 {
	return uint32(r)
}

// Ptr returns a pointer to a copy of the rank.
func (r Rank) Ptr() *Rank {
	return &r
}

// Equals compares the rank to another rank.
func (r *Rank) Equals(other Rank) bool {
	return r != nil && *r == other
}

// UnmarshalYAML accepts a numeric rank.
func (r *Rank) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseRank(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRank parses a decimal rank string.
func ParseRank(in string) (Rank, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(in), 10, 32)
	if err != nil || n == uint64(NilRank) {
		return NilRank, errors.Errorf("invalid rank %q", in)
	}
	return Rank(n), nil
}

// RankList provides convenience methods for working with Rank slices.
type RankList []Rank

func (rl RankList) String() string {
	nums := make([]uint, len(rl))
	for i, r := range rl {
		nums[i] = uint(r)
	}
	return hostlist.FormatNumeric(nums)
}

// ParseRanks parses a ranged rank string such as "[0-3,6]".
func ParseRanks(in string) (RankList, error) {
	nums, err := hostlist.ParseNumeric(in)
	if err != nil {
		return nil, errors.Wrap(err, "parsing rank list")
	}
	rl := make(RankList, 0, len(nums))
	for _, n := range nums {
		if n >= uint(NilRank) {
			return nil, errors.Errorf("rank %d out of range", n)
		}
		rl = append(rl, Rank(n))
	}
	return rl, nil
}

// Flag returns the value to pass to dmg --ranks.
func (rl RankList) Flag() string {
	return fmt.Sprintf("--ranks=%s", rl)
}
