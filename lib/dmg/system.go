//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dmg

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/daos-stack/dharness/lib/hostlist"
	"github.com/daos-stack/dharness/lib/ranklist"
)

type systemQueryResp struct {
	Members []*Member `json:"members"`
}

// SystemQuery returns the members of the system.
func (c *Client) SystemQuery(ctx context.Context) ([]*Member, error) {
	var resp systemQueryResp
	if err := c.run(ctx, &resp, c.dmgCmd("system", "query", "--verbose")); err != nil {
		return nil, err
	}
	sort.Slice(resp.Members, func(i, j int) bool { return resp.Members[i].Rank < resp.Members[j].Rank })
	return resp.Members, nil
}

type memberResultsResp struct {
	Results []*MemberResult `json:"results"`
}

func (c *Client) systemAction(ctx context.Context, action string, ranks ranklist.RankList, extra ...string) error {
	args := []string{"system", action}
	if len(ranks) > 0 {
		args = append(args, ranks.Flag())
	}
	cmd := c.dmgCmd(append(args, extra...)...)

	var resp memberResultsResp
	if err := c.run(ctx, &resp, cmd); err != nil {
		return err
	}

	var errs []string
	for _, r := range resp.Results {
		if r.Errored {
			errs = append(errs, fmt.Sprintf("rank %d: %s", r.Rank, r.Msg))
		}
	}
	if len(errs) > 0 {
		return FaultCommandFailed(cmd, strings.Join(errs, "; "), 0)
	}
	return nil
}

// SystemStop stops the supplied ranks, or all ranks if none are supplied.
func (c *Client) SystemStop(ctx context.Context, ranks ranklist.RankList) error {
	return c.systemAction(ctx, "stop", ranks, "--force")
}

// SystemStart starts the supplied ranks, or all ranks if none are supplied.
func (c *Client) SystemStart(ctx context.Context, ranks ranklist.RankList) error {
	return c.systemAction(ctx, "start", ranks)
}

type networkScanResp struct {
	hostErrorsResp
	HostFabrics map[string]*struct {
		HostSet string `json:"HostSet"`
	} `json:"HostFabrics"`
}

// NetworkScan returns the hosts that reported fabric interfaces.
func (c *Client) NetworkScan(ctx context.Context, hosts []string) ([]string, error) {
	args := []string{"network", "scan"}
	if len(hosts) > 0 {
		args = append(args, "-l", hostlist.Compress(hosts))
	}
	cmd := c.dmgCmd(args...)

	var resp networkScanResp
	if err := c.run(ctx, &resp, cmd); err != nil {
		return nil, err
	}
	if err := resp.check(cmd); err != nil {
		return nil, err
	}

	var out []string
	for _, hf := range resp.HostFabrics {
		if hf == nil {
			continue
		}
		expanded, err := ExpandHosts(hf.HostSet)
		if err != nil {
			return nil, FaultBadResponse(cmd, err)
		}
		out = append(out, expanded...)
	}
	sort.Strings(out)
	return out, nil
}

var versionRe = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:[-.~][0-9A-Za-z.]+)?)`)

// ParseVersion extracts a version number from tool output such as
// "daos_server version v2.6.0". A leading "v" is dropped.
func ParseVersion(out string) string {
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	return m[1]
}

// Version returns the dmg version.
func (c *Client) Version(ctx context.Context) (string, error) {
	cmd := c.dmgCmd("version")

	var raw json.RawMessage
	if err := c.run(ctx, &raw, cmd); err != nil {
		return "", err
	}

	var resp struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil || resp.Version == "" {
		if v := ParseVersion(string(raw)); v != "" {
			return v, nil
		}
		return "", FaultBadResponse(cmd, fmt.Errorf("no version in %s", raw))
	}
	return ParseVersion(resp.Version), nil
}
