//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package hostlist

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ParseNumeric parses a numeric list such as "[0-3,7]" or "1,2,5-6"
// into a sorted slice of distinct values.
func ParseNumeric(in string) ([]uint, error) {
	in = strings.TrimSpace(strings.Trim(strings.TrimSpace(in), "[]"))
	if in == "" {
		return nil, nil
	}

	seen := make(map[uint]struct{})
	var out []uint
	for _, rs := range strings.Split(in, string(listSep)) {
		nr, err := parseRange(strings.TrimSpace(rs))
		if err != nil {
			return nil, errors.Wrapf(err, "numeric list %q", in)
		}
		for n := nr.lo; n <= nr.hi; n++ {
			if _, dup := seen[n]; dup {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out, nil
}

// FormatNumeric returns the ranged representation of the supplied values,
// e.g. "0-3,7".
func FormatNumeric(nums []uint) string {
	g := &group{nums: append([]uint{}, nums...)}
	s := g.String()
	return strings.Trim(s, "[]")
}
