//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package orchestrator

import (
	"sync"

	"github.com/daos-stack/dharness/workload"
)

// TestContext carries the immutable parameters of one test run.
type TestContext struct {
	Name      string
	RunID     string
	Servers   []string
	Clients   []string
	Pool      string
	Container string
}

// WithPool returns a copy of the context targeting another pool and container.
func (tc TestContext) WithPool(pool, cont string) TestContext {
	tc.Servers = append([]string{}, tc.Servers...)
	tc.Clients = append([]string{}, tc.Clients...)
	tc.Pool, tc.Container = pool, cont
	return tc
}

// ResultAccumulator collects worker results for a single verdict.
type ResultAccumulator struct {
	sync.Mutex
	results []*workload.Result
}

// Add records worker results.
func (ra *ResultAccumulator) Add(results ...*workload.Result) {
	ra.Lock()
	defer ra.Unlock()
	ra.results = append(ra.results, results...)
}

// Results returns the recorded results in arrival order.
func (ra *ResultAccumulator) Results() []*workload.Result {
	ra.Lock()
	defer ra.Unlock()
	return append([]*workload.Result{}, ra.results...)
}

// Failed returns the results that did not pass.
func (ra *ResultAccumulator) Failed() []*workload.Result {
	ra.Lock()
	defer ra.Unlock()

	var out []*workload.Result
	for _, r := range ra.results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// Status is FAIL if any result failed or nothing was recorded.
func (ra *ResultAccumulator) Status() workload.Status {
	ra.Lock()
	defer ra.Unlock()

	if len(ra.results) == 0 {
		return workload.StatusFail
	}
	for _, r := range ra.results {
		if r.Failed() {
			return workload.StatusFail
		}
	}
	return workload.StatusPass
}
