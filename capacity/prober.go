//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package capacity

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/fault/code"
	"github.com/daos-stack/dharness/lib/ranklist"
	"github.com/daos-stack/dharness/logging"
)

// Quiescer stops the storage engines before a probe that needs exclusive
// access to the devices and restarts them afterwards.
type Quiescer interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

// SystemController is the subset of the cluster client used by
// SystemQuiescer.
type SystemController interface {
	SystemStop(ctx context.Context, ranks ranklist.RankList) error
	SystemStart(ctx context.Context, ranks ranklist.RankList) error
}

// SystemQuiescer stops and starts all ranks of the system.
type SystemQuiescer struct {
	System SystemController
}

// Stop implements Quiescer.
func (sq *SystemQuiescer) Stop(ctx context.Context) error {
	return sq.System.SystemStop(ctx, nil)
}

// Start implements Quiescer.
func (sq *SystemQuiescer) Start(ctx context.Context) error {
	return sq.System.SystemStart(ctx, nil)
}

// Prober discovers the fleet capacity of a set of nodes.
type Prober struct {
	log      logging.Logger
	source   UsageSource
	margin   float64
	engines  []EngineDevices
	cache    *Cache
	quiescer Quiescer
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithMargin overrides DefaultMargin.
func WithMargin(margin float64) ProberOption {
	return func(p *Prober) {
		p.margin = margin
	}
}

// WithCache enables persistent caching of probe results.
func WithCache(c *Cache) ProberOption {
	return func(p *Prober) {
		p.cache = c
	}
}

// WithQuiescer stops the engines around an uncached probe.
func WithQuiescer(q Quiescer) ProberOption {
	return func(p *Prober) {
		p.quiescer = q
	}
}

// WithEngineDevices records the engine device layout in the cache key.
func WithEngineDevices(engines []EngineDevices) ProberOption {
	return func(p *Prober) {
		p.engines = engines
	}
}

// NewProber returns a Prober reading capacities from source.
func NewProber(log logging.Logger, source UsageSource, opts ...ProberOption) *Prober {
	p := &Prober{
		log:    log,
		source: source,
		margin: DefaultMargin,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProbeNodes queries every node concurrently. The first failure cancels the
// remaining queries and is returned as a probe fault.
func (p *Prober) ProbeNodes(ctx context.Context, hosts []string) ([]*NodeCapacity, error) {
	if len(hosts) == 0 {
		return nil, FaultNoNodes
	}

	nodes := make([]*NodeCapacity, len(hosts))
	g, gctx := errgroup.WithContext(ctx)
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			engines, err := p.source.EngineUsage(gctx, host)
			if err != nil {
				if isProbeFault(err) {
					return err
				}
				return FaultQueryFailed(host, err)
			}
			if len(engines) == 0 {
				return FaultMalformed(host, "no engines reported")
			}
			nodes[i] = NewNodeCapacity(host, engines)
			p.log.Debugf("capacity: %s: %s (%d engines)", host, nodes[i].TierBytes, len(engines))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return nodes, nil
}

func isProbeFault(err error) bool {
	c := fault.CodeOf(err)
	return c >= code.ProbeUnknown && c < code.DeviceFaultUnknown
}

// Probe returns the fleet capacity of the hosts, consulting the cache when
// one is configured.
func (p *Prober) Probe(ctx context.Context, hosts []string) (*FleetCapacity, error) {
	if len(hosts) == 0 {
		return nil, FaultNoNodes
	}

	var key string
	if p.cache != nil {
		tk := &TopologyKey{Hosts: hosts, Engines: p.engines, Source: p.source.Kind(), Margin: p.margin}
		var err error
		if key, err = tk.Hash(); err != nil {
			return nil, err
		}
		fc, created, found, err := p.cache.Get(key)
		if err != nil {
			return nil, err
		}
		if found {
			p.log.Debugf("capacity: cache hit %s (stored %s)", key, created.Format("2006-01-02 15:04:05"))
			return fc, nil
		}
		p.log.Debugf("capacity: cache miss %s", key)
	}

	fc, err := p.probeQuiesced(ctx, hosts)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Put(key, fc); err != nil {
			p.log.Errorf("capacity: %s", err)
		}
	}
	return fc, nil
}

func (p *Prober) probeQuiesced(ctx context.Context, hosts []string) (fc *FleetCapacity, err error) {
	if p.quiescer != nil {
		p.log.Info("capacity: stopping engines for probe")
		if err := p.quiescer.Stop(ctx); err != nil {
			return nil, errors.Wrap(err, "stopping engines before probe")
		}
		defer func() {
			p.log.Info("capacity: restarting engines")
			if startErr := p.quiescer.Start(ctx); startErr != nil && err == nil {
				err = errors.Wrap(startErr, "restarting engines after probe")
			}
		}()
	}

	nodes, err := p.ProbeNodes(ctx, hosts)
	if err != nil {
		return nil, err
	}
	fc, err = Reduce(nodes, p.margin)
	if err != nil {
		return nil, err
	}
	p.log.Infof("capacity: fleet %s", fc)
	return fc, nil
}
