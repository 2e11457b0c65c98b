//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package orchestrator runs a workload and a fault plan against the same
// pool concurrently and reduces the outcome to a single Verdict.
//
// The settle delay before injection is a heuristic race window. It does not
// guarantee that a fault lands during any particular I/O phase.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/atm"
	"github.com/daos-stack/dharness/logging"
	"github.com/daos-stack/dharness/workload"
)

// DefaultSettleDelay is the wait between starting the workload and
// starting fault injection.
const DefaultSettleDelay = 60 * time.Second

type (
	// WorkloadRunner runs worker groups to completion.
	WorkloadRunner interface {
		LaunchGroups(ctx context.Context, spec *workload.Spec, pool, cont string, groups []*workload.Group) []*workload.Result
	}

	// FaultRunner runs a fault plan.
	FaultRunner interface {
		Inject(ctx context.Context, plan *faultinject.Plan, target *faultinject.Target) error
	}

	// Orchestrator coordinates one run at a time.
	Orchestrator struct {
		log         logging.Logger
		runner      WorkloadRunner
		injector    FaultRunner
		settleDelay time.Duration

		injFailed atm.Bool
		mu        sync.Mutex
		faultDone chan struct{}
		faultErr  error
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)
)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.settleDelay = d
	}
}

// New returns an initialized Orchestrator.
func New(log logging.Logger, runner WorkloadRunner, injector FaultRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		log:         log,
		runner:      runner,
		injector:    injector,
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run starts the workload and, if plan is non-empty, injects faults after
// the settle delay. It returns once every worker group has reported,
// whether or not injection has finished; use DrainFaults to wait for it.
func (o *Orchestrator) Run(ctx context.Context, tc TestContext, spec *workload.Spec, groups []*workload.Group, plan *faultinject.Plan) *Verdict {
	start := time.Now()
	verdict := &Verdict{Name: tc.Name, RunID: tc.RunID, Faults: FaultNone}

	workDone := make(chan []*workload.Result, 1)
	go func() {
		workDone <- o.runner.LaunchGroups(ctx, spec, tc.Pool, tc.Container, groups)
	}()

	finished := make(chan struct{})
	var decision <-chan bool
	if !plan.Empty() && o.injector != nil {
		decision = o.startFaults(ctx, tc, plan, finished)
	}

	results := <-workDone
	close(finished)

	acc := &ResultAccumulator{}
	acc.Add(results...)
	verdict.Results = acc.Results()
	verdict.Status = acc.Status()
	verdict.Elapsed = time.Since(start)

	if decision != nil {
		verdict.Faults, verdict.FaultErr = o.faultState(<-decision)
		if verdict.Faults == FaultFailed {
			verdict.Status = workload.StatusFail
		}
	}

	o.log.Infof("%s: %s after %s", tc.Name, verdict.Status, verdict.Elapsed.Round(time.Second))
	if !verdict.Passed() {
		o.log.Errorf("%s: %s", tc.Name, verdict.Reason())
	}
	return verdict
}

// startFaults launches the injector after the settle delay. The returned
// channel reports whether injection was started; it is skipped if the
// workload finishes first.
func (o *Orchestrator) startFaults(ctx context.Context, tc TestContext, plan *faultinject.Plan, finished <-chan struct{}) <-chan bool {
	decision := make(chan bool, 1)
	done := make(chan struct{})

	o.mu.Lock()
	o.faultDone = done
	o.faultErr = nil
	o.mu.Unlock()
	o.injFailed.SetFalse()

	go func() {
		defer close(done)

		timer := time.NewTimer(o.settleDelay)
		defer timer.Stop()

		o.log.Infof("%s: injecting faults in %s: %s", tc.Name, o.settleDelay, plan)
		select {
		case <-ctx.Done():
			o.setFaultErr(ctx.Err())
			decision <- true
			return
		case <-finished:
			o.log.Noticef("%s: workload finished before the settle delay, faults skipped", tc.Name)
			decision <- false
			return
		case <-timer.C:
		}

		decision <- true
		err := o.injector.Inject(ctx, plan, &faultinject.Target{Hosts: tc.Servers, Pool: tc.Pool})
		if err != nil {
			o.log.Errorf("%s: fault injection failed: %s", tc.Name, err)
			o.setFaultErr(err)
		}
	}()

	return decision
}

func (o *Orchestrator) setFaultErr(err error) {
	o.mu.Lock()
	o.faultErr = err
	o.mu.Unlock()
	o.injFailed.SetTrue()
}

func (o *Orchestrator) faultState(started bool) (FaultState, error) {
	if !started {
		return FaultSkipped, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.injFailed.IsTrue() {
		return FaultFailed, o.faultErr
	}
	select {
	case <-o.faultDone:
		return FaultDone, nil
	default:
		return FaultRunning, nil
	}
}

// DrainFaults waits for an in-flight injection to finish and returns its
// error.
func (o *Orchestrator) DrainFaults(ctx context.Context) error {
	o.mu.Lock()
	done := o.faultDone
	o.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for fault injection")
	case <-done:
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.faultErr
}
