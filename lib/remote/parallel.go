//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package remote

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/daos-stack/dharness/logging"
)

// DefaultFanout bounds the number of concurrent commands in RunParallel.
const DefaultFanout = 32

// RunParallel runs cmd on every host concurrently and returns the results
// in host order. The first transport error cancels the remaining commands
// and is returned; non-zero exits are left for the caller to inspect.
func RunParallel(ctx context.Context, e Executor, hosts []string, cmd string) ([]*Result, error) {
	return RunEach(ctx, e, hosts, func(string) string { return cmd })
}

// RunEach is like RunParallel but builds a per-host command.
func RunEach(ctx context.Context, e Executor, hosts []string, cmdFn func(host string) string) ([]*Result, error) {
	results := make([]*Result, len(hosts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultFanout)
	for i, host := range hosts {
		i, host := i, host
		g.Go(func() error {
			res, err := e.Exec(gctx, host, cmdFn(host))
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if failed := Failed(results); len(failed) > 0 {
		logging.FromContext(ctx).Debugf("remote: %d/%d hosts exited non-zero (first: %s)",
			len(failed), len(results), failed[0])
	}
	return results, nil
}

// Failed returns the results that did not exit 0.
func Failed(results []*Result) []*Result {
	var out []*Result
	for _, r := range results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}
