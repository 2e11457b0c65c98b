//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package scenario

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/lib/dmg"
)

const (
	poolCreateAllOne     = "pool-create-all-one"
	poolCreateAllTwo     = "pool-create-all-two"
	poolCreateAllRecycle = "pool-create-all-recycle"

	// DefaultEpsilonBytes is the allowed difference between a requested
	// share of the available storage and the pool actually created.
	DefaultEpsilonBytes = 1 << 20
	// DefaultMetadataBytes bounds the storage consumed by pool metadata
	// in addition to the pool's own tiers.
	DefaultMetadataBytes = 1 << 34
	// DefaultRecycleIterations is the number of create/destroy cycles.
	DefaultRecycleIterations = 10
)

// RegisterPoolCreateAll registers the whole-capacity pool creation scenarios.
func RegisterPoolCreateAll(r *Registry) error {
	tags := []string{"pool", "pool_create_all"}
	for _, s := range []*Scenario{
		{
			Name:        poolCreateAllOne,
			Description: "create one pool with all of the available storage",
			Tags:        tags,
			Run:         runPoolCreateAllOne,
		},
		{
			Name:        poolCreateAllTwo,
			Description: "create a pool with half of the available storage, then a second with the rest",
			Tags:        tags,
			Run:         runPoolCreateAllTwo,
		},
		{
			Name:        poolCreateAllRecycle,
			Description: "repeatedly create and destroy a pool using all of the available storage",
			Tags:        tags,
			Run:         runPoolCreateAllRecycle,
		},
	} {
		if err := r.Add(s); err != nil {
			return err
		}
	}
	return nil
}

// tierBytes is a per-tier byte count as seen by pool creation.
type tierBytes struct {
	scm  uint64
	nvme uint64
}

func (tb tierBytes) String() string {
	return fmt.Sprintf("scm=%s nvme=%s", humanize.IBytes(tb.scm), humanize.IBytes(tb.nvme))
}

// availableBytes sums the available SCM mount and SMD device bytes across
// the servers.
func availableBytes(ctx context.Context, env *Env) (tierBytes, error) {
	var tb tierBytes
	byHost, err := env.Cluster.StorageUsage(ctx, env.Config.Servers)
	if err != nil {
		return tb, errors.Wrap(err, "querying storage usage")
	}
	for _, hs := range byHost {
		if hs == nil {
			continue
		}
		for _, ns := range hs.ScmNamespaces {
			if ns != nil && ns.Mount != nil {
				tb.scm += ns.Mount.AvailBytes
			}
		}
		for _, ctrlr := range hs.NvmeDevices {
			if ctrlr == nil {
				continue
			}
			for _, sd := range ctrlr.SmdDevices {
				if sd != nil {
					tb.nvme += sd.AvailBytes
				}
			}
		}
	}
	env.Log.Infof("available bytes: %s", tb)
	return tb, nil
}

// poolTotals returns the total bytes of each tier of a pool.
func poolTotals(ctx context.Context, env *Env, pool string) (tierBytes, error) {
	var tb tierBytes
	pi, err := env.Cluster.PoolQuery(ctx, pool)
	if err != nil {
		return tb, errors.Wrapf(err, "querying pool %s", pool)
	}
	if t := pi.Tier(dmg.MediaTypeScm); t != nil {
		tb.scm = t.Total
	}
	if t := pi.Tier(dmg.MediaTypeNvme); t != nil {
		tb.nvme = t.Total
	}
	return tb, nil
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// checkWithin fails unless got is within tol bytes of want.
func checkWithin(what string, want, got, tol uint64) error {
	if absDiff(want, got) > tol {
		return FaultCheckFailed("invalid %s size: want=%d, got=%d, tolerance=%d", what, want, got, tol)
	}
	return nil
}

func checkTiers(what string, want, got tierBytes, scmTol, nvmeTol uint64) error {
	if err := checkWithin(what+" SCM", want.scm, got.scm, scmTol); err != nil {
		return err
	}
	return checkWithin(what+" NVMe", want.nvme, got.nvme, nvmeTol)
}

func (env *Env) sizeParam(scenario, key string, def uint64) (uint64, error) {
	raw := env.param(scenario, key, "")
	if raw == "" {
		return def, nil
	}
	size, err := config.ParseSize(raw)
	if err != nil {
		return 0, err
	}
	return size.Bytes(), nil
}

func runPoolCreateAllOne(ctx context.Context, env *Env, out *Outcome) error {
	avail, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	out.Notef("available before create: %s", avail)

	pool, destroy, err := env.createPool(ctx, &dmg.PoolCreateReq{Label: env.label("all"), Size: "100%"})
	if err != nil {
		return err
	}
	defer destroy()

	got, err := poolTotals(ctx, env, pool.Label)
	if err != nil {
		return err
	}
	out.Notef("pool %s: %s", pool.Label, got)
	if err := checkTiers("pool", avail, got, 0, 0); err != nil {
		return err
	}

	left, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	return checkTiers("remaining", tierBytes{}, left, 0, 0)
}

func runPoolCreateAllTwo(ctx context.Context, env *Env, out *Outcome) error {
	epsilon, err := env.sizeParam(poolCreateAllTwo, "epsilon", DefaultEpsilonBytes)
	if err != nil {
		return err
	}
	metadata, err := env.sizeParam(poolCreateAllTwo, "metadata_tolerance", DefaultMetadataBytes)
	if err != nil {
		return err
	}

	avail, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	out.Notef("available before create: %s", avail)

	first, destroyFirst, err := env.createPool(ctx, &dmg.PoolCreateReq{Label: env.label("half"), Size: "50%"})
	if err != nil {
		return err
	}
	defer destroyFirst()

	got, err := poolTotals(ctx, env, first.Label)
	if err != nil {
		return err
	}
	out.Notef("first pool %s: %s", first.Label, got)
	doubled := tierBytes{scm: 2 * got.scm, nvme: 2 * got.nvme}
	if err := checkTiers("first pool", avail, doubled, epsilon, epsilon); err != nil {
		return err
	}

	// Pool metadata is taken from the available storage as well, so the
	// remainder is only roughly half.
	remain, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	doubled = tierBytes{scm: 2 * remain.scm, nvme: 2 * remain.nvme}
	if err := checkTiers("remaining", avail, doubled, metadata, metadata); err != nil {
		return err
	}

	second, destroySecond, err := env.createPool(ctx, &dmg.PoolCreateReq{Label: env.label("rest"), Size: "100%"})
	if err != nil {
		return err
	}
	defer destroySecond()

	got, err = poolTotals(ctx, env, second.Label)
	if err != nil {
		return err
	}
	out.Notef("second pool %s: %s", second.Label, got)
	if err := checkTiers("second pool", remain, got, epsilon, epsilon); err != nil {
		return err
	}

	left, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	return checkTiers("remaining", tierBytes{}, left, 0, 0)
}

func runPoolCreateAllRecycle(ctx context.Context, env *Env, out *Outcome) error {
	epsilon, err := env.sizeParam(poolCreateAllRecycle, "epsilon", DefaultEpsilonBytes)
	if err != nil {
		return err
	}
	iterations := DefaultRecycleIterations
	if raw := env.param(poolCreateAllRecycle, "iterations", ""); raw != "" {
		if iterations, err = strconv.Atoi(raw); err != nil || iterations <= 0 {
			return config.FaultConfigInvalid("scenarios.pool-create-all-recycle.iterations must be a positive integer")
		}
	}

	avail, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	out.Notef("available before create: %s", avail)

	for i := 0; i < iterations; i++ {
		if err := recyclePool(ctx, env, i, avail, epsilon); err != nil {
			return errors.WithMessagef(err, "iteration %d", i)
		}
	}
	out.Notef("%d create/destroy cycles reclaimed all storage", iterations)
	return nil
}

func recyclePool(ctx context.Context, env *Env, i int, avail tierBytes, epsilon uint64) error {
	env.Log.Infof("creating pool %d with 100%% of the available storage", i)
	pool, destroy, err := env.createPool(ctx, &dmg.PoolCreateReq{Label: env.label("recycle"), Size: "100%"})
	if err != nil {
		return err
	}

	got, err := poolTotals(ctx, env, pool.Label)
	if err == nil {
		err = checkTiers("pool", avail, got, epsilon, 0)
	}
	if err != nil {
		destroy()
		return err
	}

	if err := env.Cluster.PoolDestroy(ctx, pool.Label); err != nil {
		return errors.Wrapf(err, "destroying pool %s", pool.Label)
	}

	left, err := availableBytes(ctx, env)
	if err != nil {
		return err
	}
	return checkTiers("reclaimed", avail, left, epsilon, 0)
}
