//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package hostlist expands and compresses ranged host strings such as
// "wolf-[1-4,7],boro-9".
package hostlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MaxRange limits the size of a single expanded range.
	MaxRange = 1 << 16

	openBracket  = '['
	closeBracket = ']'
	rangeSep     = '-'
	listSep      = ','
)

// splitTopLevel splits a host list on commas that are not inside
// brackets or on whitespace.
func splitTopLevel(in string) ([]string, error) {
	var out []string
	var cur strings.Builder
	depth := 0

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, c := range in {
		switch {
		case c == openBracket:
			if depth > 0 {
				return nil, errors.Errorf("nested brackets in %q", in)
			}
			depth++
			cur.WriteRune(c)
		case c == closeBracket:
			if depth == 0 {
				return nil, errors.Errorf("unmatched %q in %q", closeBracket, in)
			}
			depth--
			cur.WriteRune(c)
		case (c == listSep || c == ' ' || c == '\t' || c == '\n') && depth == 0:
			flush()
		default:
			cur.WriteRune(c)
		}
	}
	if depth != 0 {
		return nil, errors.Errorf("unmatched %q in %q", openBracket, in)
	}
	flush()

	return out, nil
}

// numRange is an inclusive range of host numbers sharing a zero-padding width.
type numRange struct {
	lo, hi uint
	width  int
}

func parseRange(in string) (*numRange, error) {
	loStr, hiStr := in, in
	if i := strings.IndexByte(in, rangeSep); i >= 0 {
		loStr, hiStr = in[:i], in[i+1:]
	}
	lo, err := strconv.ParseUint(loStr, 10, 32)
	if err != nil {
		return nil, errors.Errorf("invalid range %q", in)
	}
	hi, err := strconv.ParseUint(hiStr, 10, 32)
	if err != nil {
		return nil, errors.Errorf("invalid range %q", in)
	}
	if hi < lo {
		return nil, errors.Errorf("invalid range %q: %d < %d", in, hi, lo)
	}
	if hi-lo >= MaxRange {
		return nil, errors.Errorf("range %q exceeds %d hosts", in, MaxRange)
	}

	width := 0
	if len(loStr) > 1 && loStr[0] == '0' {
		width = len(loStr)
	}

	return &numRange{lo: uint(lo), hi: uint(hi), width: width}, nil
}

func (nr *numRange) format(n uint) string {
	return fmt.Sprintf("%0*d", nr.width, n)
}

func expandOne(pattern string) ([]string, error) {
	open := strings.IndexByte(pattern, openBracket)
	if open < 0 {
		if pattern == "" {
			return nil, errors.New("empty hostname")
		}
		return []string{pattern}, nil
	}
	close := strings.IndexByte(pattern, closeBracket)
	if close < open {
		return nil, errors.Errorf("malformed host range %q", pattern)
	}
	prefix, body, suffix := pattern[:open], pattern[open+1:close], pattern[close+1:]
	if body == "" {
		return nil, errors.Errorf("empty range in %q", pattern)
	}

	tails, err := expandOne(suffix)
	if suffix == "" {
		tails, err = []string{""}, nil
	}
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rs := range strings.Split(body, string(listSep)) {
		nr, err := parseRange(rs)
		if err != nil {
			return nil, errors.Wrapf(err, "host pattern %q", pattern)
		}
		for n := nr.lo; n <= nr.hi; n++ {
			for _, t := range tails {
				out = append(out, prefix+nr.format(n)+t)
			}
		}
	}

	return out, nil
}

// Expand converts a ranged host string into a slice of distinct host
// names in first-seen order.
func Expand(stringHosts string) ([]string, error) {
	patterns, err := splitTopLevel(stringHosts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var hosts []string
	for _, p := range patterns {
		expanded, err := expandOne(p)
		if err != nil {
			return nil, err
		}
		for _, h := range expanded {
			if _, dup := seen[h]; dup {
				continue
			}
			seen[h] = struct{}{}
			hosts = append(hosts, h)
		}
	}

	return hosts, nil
}

// ExpandAll expands each entry of the supplied list and returns the
// merged, de-duplicated result.
func ExpandAll(in []string) ([]string, error) {
	return Expand(strings.Join(in, ","))
}

// splitHost splits a hostname into a prefix and a trailing number, if any.
func splitHost(host string) (prefix string, num uint, width int, ok bool) {
	i := len(host)
	for i > 0 && host[i-1] >= '0' && host[i-1] <= '9' {
		i--
	}
	if i == len(host) {
		return host, 0, 0, false
	}
	digits := host[i:]
	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return host, 0, 0, false
	}
	if len(digits) > 1 && digits[0] == '0' {
		width = len(digits)
	}
	return host[:i], uint(n), width, true
}

type group struct {
	prefix string
	width  int
	nums   []uint
}

// Compress converts the supplied hosts into a sorted, ranged host string.
func Compress(hosts []string) string {
	groups := make(map[string]*group)
	var plain []string

	for _, h := range hosts {
		prefix, n, width, ok := splitHost(h)
		if !ok {
			plain = append(plain, h)
			continue
		}
		key := fmt.Sprintf("%s/%d", prefix, width)
		g, found := groups[key]
		if !found {
			g = &group{prefix: prefix, width: width}
			groups[key] = g
		}
		g.nums = append(g.nums, n)
	}

	var out []string
	for _, g := range groups {
		out = append(out, g.String())
	}
	out = append(out, dedup(plain)...)
	sort.Strings(out)

	return strings.Join(out, ",")
}

func dedup(in []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range in {
		if _, dup := seen[s]; !dup {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func (g *group) String() string {
	sort.Slice(g.nums, func(i, j int) bool { return g.nums[i] < g.nums[j] })

	var ranges []string
	count := 0
	for i := 0; i < len(g.nums); {
		j := i
		for j+1 < len(g.nums) && g.nums[j+1] <= g.nums[j]+1 {
			j++
		}
		lo, hi := g.nums[i], g.nums[j]
		if lo == hi {
			ranges = append(ranges, fmt.Sprintf("%0*d", g.width, lo))
			count++
		} else {
			ranges = append(ranges, fmt.Sprintf("%0*d-%0*d", g.width, lo, g.width, hi))
			count += 2
		}
		i = j + 1
	}

	if count == 1 {
		return g.prefix + ranges[0]
	}
	return fmt.Sprintf("%s[%s]", g.prefix, strings.Join(ranges, ","))
}

// Count returns the number of distinct hosts in the supplied host list.
func Count(stringHosts string) (int, error) {
	hosts, err := Expand(stringHosts)
	if err != nil {
		return -1, err
	}
	return len(hosts), nil
}
