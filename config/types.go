//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package config

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/daos-stack/dharness/lib/hostlist"
)

// Size is a byte count that may be written as a humanized string.
type Size uint64

// ParseSize parses a byte count or humanized size.
func ParseSize(in string) (Size, error) {
	in = strings.TrimSpace(in)
	if n, err := strconv.ParseUint(in, 10, 64); err == nil {
		return Size(n), nil
	}
	n, err := humanize.ParseBytes(in)
	if err != nil {
		return 0, FaultConfigBadSize(in, err)
	}
	return Size(n), nil
}

// UnmarshalYAML accepts either an integer or a humanized string.
func (s *Size) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var n uint64
	if err := unmarshal(&n); err == nil {
		*s = Size(n)
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return err
	}
	parsed, err := ParseSize(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML writes the exact byte count.
func (s Size) MarshalYAML() (interface{}, error) {
	return uint64(s), nil
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// Bytes returns the size as a byte count.
func (s Size) Bytes() uint64 {
	return uint64(s)
}

// HostList is a list of hostnames which may be written as a single ranged
// string ("wolf-[1-4]") or as a list of ranged strings.
type HostList []string

// UnmarshalYAML expands ranged host notation.
func (hl *HostList) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var list []string
	if err := unmarshal(&list); err != nil {
		var single string
		if err := unmarshal(&single); err != nil {
			return err
		}
		list = []string{single}
	}

	hosts, err := hostlist.ExpandAll(list)
	if err != nil {
		return FaultConfigBadHostList(strings.Join(list, ","), err)
	}
	*hl = hosts
	return nil
}

// MarshalYAML writes the list in compressed ranged notation.
func (hl HostList) MarshalYAML() (interface{}, error) {
	return hl.String(), nil
}

func (hl HostList) String() string {
	return hostlist.Compress(hl)
}
