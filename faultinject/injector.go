//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package faultinject

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/poll"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/logging"
)

type (
	// Cluster is the subset of the cluster management interface used to
	// inject faults.
	Cluster interface {
		ListDevices(ctx context.Context, host string) ([]*dmg.Device, error)
		SetDeviceFaulty(ctx context.Context, host, devUUID string) error
		DeviceHealth(ctx context.Context, host, devUUID string) (string, error)
		SystemStop(ctx context.Context, ranks ranklist.RankList) error
	}

	// RebuildObserver reports whether a pool is rebuilding.
	RebuildObserver interface {
		Rebuilding(ctx context.Context, pool string) (bool, error)
	}

	// Recorder is notified of injection events.
	Recorder interface {
		DeviceFaulted(host string)
		RankStopped(rank ranklist.Rank)
		RebuildWait(elapsed time.Duration, err error)
		InjectionFailed(err error)
	}

	// Target identifies the servers and pool an injection sequence acts on.
	Target struct {
		Hosts []string
		Pool  string
	}

	// Injector runs fault plans against a cluster.
	Injector struct {
		log     logging.Logger
		cluster Cluster
		rebuild RebuildObserver
		claimer Claimer
		rec     Recorder
	}

	// Option configures an Injector.
	Option func(*Injector)
)

// WithClaimer sets the device Claimer. The default is a private ClaimSet.
func WithClaimer(c Claimer) Option {
	return func(inj *Injector) {
		inj.claimer = c
	}
}

// WithRecorder sets an event Recorder.
func WithRecorder(r Recorder) Option {
	return func(inj *Injector) {
		inj.rec = r
	}
}

// NewInjector returns an initialized Injector.
func NewInjector(log logging.Logger, cluster Cluster, rebuild RebuildObserver, opts ...Option) *Injector {
	inj := &Injector{
		log:     log,
		cluster: cluster,
		rebuild: rebuild,
		claimer: NewClaimSet(),
		rec:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(inj)
	}
	return inj
}

// SelectDevices lists the devices on the first plan.Nodes hosts and picks
// plan.DevicesPerNode of them from each, skipping devices already EVICTED.
func (inj *Injector) SelectDevices(ctx context.Context, plan *Plan, hosts []string) ([]*dmg.Device, error) {
	if plan.Nodes == 0 {
		return nil, nil
	}
	if len(hosts) < plan.Nodes {
		return nil, FaultBadPlan("plan requires more nodes than the target has")
	}

	var selected []*dmg.Device
	for _, host := range hosts[:plan.Nodes] {
		devs, err := inj.cluster.ListDevices(ctx, host)
		if err != nil {
			return nil, errors.Wrapf(err, "listing devices on %s", host)
		}

		var usable []*dmg.Device
		for _, dev := range devs {
			if isEvicted(dev.State) {
				inj.log.Debugf("faultinject: %s: skipping evicted device %s", host, dev.UUID)
				continue
			}
			if dev.Host == "" {
				dev.Host = host
			}
			usable = append(usable, dev)
		}
		if len(usable) < plan.DevicesPerNode {
			return nil, FaultInsufficientDevices(host, plan.DevicesPerNode, len(usable))
		}
		selected = append(selected, usable[:plan.DevicesPerNode]...)
	}
	return selected, nil
}

func isEvicted(state string) bool {
	return strings.EqualFold(strings.TrimSpace(state), dmg.DeviceStateEvicted)
}

func (inj *Injector) claimAll(devs []*dmg.Device) (func(), error) {
	var releases []func()
	releaseAll := func() {
		for _, r := range releases {
			r()
		}
	}
	for _, dev := range devs {
		release, err := inj.claimer.Claim(dev.Host, dev.UUID)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// Inject runs the plan against the target. Devices are faulted strictly one
// at a time, each confirmed EVICTED and its rebuild settled before the next.
// Nothing faulted here is ever restored.
func (inj *Injector) Inject(ctx context.Context, plan *Plan, target *Target) (err error) {
	defer func() {
		if err != nil {
			inj.rec.InjectionFailed(err)
		}
	}()

	if err := plan.Validate(); err != nil {
		return err
	}
	if target == nil {
		return FaultBadPlan("no target")
	}
	plan = plan.WithDefaults()

	devs, err := inj.SelectDevices(ctx, plan, target.Hosts)
	if err != nil {
		return err
	}
	release, err := inj.claimAll(devs)
	if err != nil {
		return err
	}
	defer release()

	inj.log.Infof("faultinject: %s", plan)
	for i, dev := range devs {
		inj.log.Infof("faultinject: faulting device %d/%d: %s on %s", i+1, len(devs), dev.UUID, dev.Host)
		if err := inj.faultDevice(ctx, plan, dev); err != nil {
			return err
		}
		inj.rec.DeviceFaulted(dev.Host)

		if err := inj.WaitForRebuild(ctx, plan, target.Pool); err != nil {
			return err
		}
	}

	if plan.Rank != nil {
		if err := inj.stopRank(ctx, plan, *plan.Rank); err != nil {
			return err
		}
		if err := inj.WaitForRebuild(ctx, plan, target.Pool); err != nil {
			return err
		}
	}

	inj.log.Infof("faultinject: plan complete")
	return nil
}

func (inj *Injector) faultDevice(ctx context.Context, plan *Plan, dev *dmg.Device) error {
	if err := inj.cluster.SetDeviceFaulty(ctx, dev.Host, dev.UUID); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return FaultSetFailed(dev.Host, dev.UUID, err)
	}

	var lastState string
	err := poll.Until(ctx, poll.Options{
		Interval: plan.PollInterval,
		Timeout:  plan.HealthTimeout,
	}, func(ctx context.Context) (bool, error) {
		state, err := inj.cluster.DeviceHealth(ctx, dev.Host, dev.UUID)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			return false, FaultHealthQueryFailed(dev.Host, dev.UUID, err)
		}
		lastState = state
		inj.log.Debugf("faultinject: %s on %s: %s", dev.UUID, dev.Host, state)
		return isEvicted(state), nil
	})
	switch {
	case err == nil:
		return nil
	case poll.IsTimeout(err):
		return FaultNotEvicted(dev.Host, dev.UUID, lastState, plan.HealthTimeout)
	default:
		return err
	}
}

func (inj *Injector) stopRank(ctx context.Context, plan *Plan, rank ranklist.Rank) error {
	if plan.RankDelay > 0 {
		inj.log.Infof("faultinject: stopping rank %s in %s", rank, plan.RankDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(plan.RankDelay):
		}
	}

	inj.log.Infof("faultinject: stopping rank %s", rank)
	if err := inj.cluster.SystemStop(ctx, ranklist.RankList{rank}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return FaultRankStopFailed(rank, err)
	}
	inj.rec.RankStopped(rank)
	return nil
}

// WaitForRebuild waits for the pool's rebuild to start and then for it to
// return to idle. The start wait is skipped only when the plan opts out of
// it. An empty pool skips both waits.
func (inj *Injector) WaitForRebuild(ctx context.Context, plan *Plan, pool string) (err error) {
	if pool == "" || inj.rebuild == nil {
		return nil
	}
	plan = plan.WithDefaults()

	start := time.Now()
	defer func() {
		inj.rec.RebuildWait(time.Since(start), err)
	}()

	query := func(want bool) poll.Predicate {
		return func(ctx context.Context) (bool, error) {
			busy, err := inj.rebuild.Rebuilding(ctx, pool)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				return false, FaultRebuildQueryFailed(pool, err)
			}
			return busy == want, nil
		}
	}

	if !plan.SkipRebuildStart {
		inj.log.Debugf("faultinject: waiting for rebuild of %s to start", pool)
		err := poll.Until(ctx, poll.Options{
			Interval: plan.PollInterval,
			Timeout:  plan.RebuildStartTimeout,
		}, query(true))
		switch {
		case poll.IsTimeout(err):
			return FaultRebuildStartTimeout(pool, plan.RebuildStartTimeout)
		case err != nil:
			return err
		}
	}

	inj.log.Debugf("faultinject: waiting for rebuild of %s to finish", pool)
	err = poll.Until(ctx, poll.Options{
		Interval: plan.PollInterval,
		Timeout:  plan.RebuildTimeout,
		Notify: func(attempt int, _ time.Duration) {
			if attempt%30 == 0 {
				inj.log.Infof("faultinject: rebuild of %s still busy after %s", pool, time.Since(start).Round(time.Second))
			}
		},
	}, query(false))
	switch {
	case poll.IsTimeout(err):
		return FaultRebuildTimeout(pool, plan.RebuildTimeout)
	case err != nil:
		return err
	}

	inj.log.Infof("faultinject: rebuild of %s idle after %s", pool, time.Since(start).Round(time.Millisecond))
	return nil
}

type nopRecorder struct{}

func (nopRecorder) DeviceFaulted(string)             {}
func (nopRecorder) RankStopped(ranklist.Rank)        {}
func (nopRecorder) RebuildWait(time.Duration, error) {}
func (nopRecorder) InjectionFailed(error)            {}
