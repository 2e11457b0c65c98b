//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/lib/remote"
)

const (
	preflightName = "preflight"
	rasName       = "ras"

	defaultRasPause = 5 * time.Second
)

// RegisterDeployment registers the deployment sanity scenarios.
func RegisterDeployment(r *Registry) error {
	for _, s := range []*Scenario{
		{
			Name:        preflightName,
			Description: "verify passwordless access between nodes and matching server and client versions",
			Tags:        []string{"deployment", "criticalintegration"},
			Run:         runPreflight,
		},
		{
			Name:        rasName,
			Description: "stop and restart every rank, then scan storage and network",
			Tags:        []string{"deployment", "criticalintegration"},
			Run:         runRas,
		},
	} {
		if err := r.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// collectVersions runs cmd on every host and returns the version parsed
// from each host's output.
func collectVersions(ctx context.Context, exec remote.Executor, hosts []string, cmd string) (map[string]string, error) {
	results, err := remote.RunParallel(ctx, exec, hosts, cmd)
	if err != nil {
		return nil, err
	}

	versions := make(map[string]string, len(results))
	for _, res := range results {
		if !res.Succeeded() {
			return nil, FaultCheckFailed("%s failed on %s: %s", cmd, res.Host, res)
		}
		v := dmg.ParseVersion(res.Stdout)
		if v == "" {
			return nil, FaultCheckFailed("no version in %q output on %s", cmd, res.Host)
		}
		versions[res.Host] = v
	}
	return versions, nil
}

// distinct returns the sorted set of values.
func distinct(m map[string]string) []string {
	set := make(map[string]struct{})
	for _, v := range m {
		set[v] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func checkAll(ctx context.Context, exec remote.Executor, hosts []string, cmd, what string) error {
	results, err := remote.RunParallel(ctx, exec, hosts, cmd)
	if err != nil {
		return errors.Wrap(err, what)
	}
	if failed := remote.Failed(results); len(failed) > 0 {
		var msgs []string
		for _, res := range failed {
			msgs = append(msgs, res.String())
		}
		return FaultCheckFailed("%s failed: %s", what, strings.Join(msgs, "; "))
	}
	return nil
}

func runPreflight(ctx context.Context, env *Env, out *Outcome) error {
	servers := env.Config.Servers
	checkRoot, err := env.boolParam(preflightName, "check_root", false)
	if err != nil {
		return err
	}
	checkPdsh, err := env.boolParam(preflightName, "pdsh", true)
	if err != nil {
		return err
	}

	serverVersions, err := collectVersions(ctx, env.Exec, servers, "daos_server version")
	if err != nil {
		return errors.WithMessage(err, "server ssh check")
	}
	out.Notef("server versions: %v", serverVersions)

	if checkRoot {
		if err := checkAll(ctx, env.Exec, servers, "sudo -n true", "root access check"); err != nil {
			return err
		}
	}
	if checkPdsh {
		cmd := fmt.Sprintf("pdsh -S -w %s 'echo hello'", strings.Join(servers, ","))
		if err := checkAll(ctx, env.Exec, servers, cmd, "inter-node pdsh check"); err != nil {
			return err
		}
	}

	var clientVersions map[string]string
	if len(env.Config.Clients) > 0 {
		clientVersions, err = collectVersions(ctx, env.Exec, env.Config.Clients, "dmg version -i")
		if err != nil {
			return errors.WithMessage(err, "client ssh check")
		}
	} else {
		v, err := env.Cluster.Version(ctx)
		if err != nil {
			return errors.Wrap(err, "dmg version")
		}
		clientVersions = map[string]string{"dmg": v}
	}
	out.Notef("client versions: %v", clientVersions)

	sv, cv := distinct(serverVersions), distinct(clientVersions)
	switch {
	case len(sv) != 1:
		return dmg.FaultVersionMismatch("servers", sv[0], strings.Join(sv[1:], ","))
	case len(cv) != 1:
		return dmg.FaultVersionMismatch("clients", cv[0], strings.Join(cv[1:], ","))
	case sv[0] != cv[0]:
		return dmg.FaultVersionMismatch("servers and clients", sv[0], cv[0])
	}
	out.Notef("servers and clients run version %s", sv[0])
	return nil
}

func runRas(ctx context.Context, env *Env, out *Outcome) error {
	delay, err := env.durationParam(rasName, "pause", defaultRasPause)
	if err != nil {
		return err
	}

	members, err := env.Cluster.SystemQuery(ctx)
	if err != nil {
		return errors.Wrap(err, "querying system members")
	}
	if len(members) == 0 {
		return FaultCheckFailed("system query returned no members")
	}

	for _, m := range members {
		ranks := ranklist.RankList{m.Rank}
		env.Log.Infof("ras: stopping rank %d", m.Rank)
		if err := env.Cluster.SystemStop(ctx, ranks); err != nil {
			return errors.Wrapf(err, "stopping rank %d", m.Rank)
		}
		if err := pause(ctx, delay); err != nil {
			return err
		}
		env.Log.Infof("ras: starting rank %d", m.Rank)
		if err := env.Cluster.SystemStart(ctx, ranks); err != nil {
			return errors.Wrapf(err, "starting rank %d", m.Rank)
		}
		if err := pause(ctx, delay); err != nil {
			return err
		}
	}
	out.Notef("cycled %d ranks", len(members))

	servers := env.Config.Servers
	scanned, err := env.Cluster.StorageScan(ctx, servers)
	if err != nil {
		return errors.Wrap(err, "storage scan")
	}
	fabric, err := env.Cluster.NetworkScan(ctx, servers)
	if err != nil {
		return errors.Wrap(err, "network scan")
	}

	inFabric := make(map[string]bool, len(fabric))
	for _, h := range fabric {
		inFabric[h] = true
	}
	for _, h := range servers {
		if _, found := scanned[h]; !found {
			return FaultCheckFailed("storage scan did not report %s", h)
		}
		if !inFabric[h] {
			return FaultCheckFailed("network scan did not report %s", h)
		}
	}
	out.Notef("storage and network scans reported all %d servers", len(servers))
	return nil
}
