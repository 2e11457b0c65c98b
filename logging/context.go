//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging

import (
	"context"
)

type runKeyType struct{}

// runScope is the logger and run identity attached to a context.
type runScope struct {
	log   Logger
	runID string
}

func scopeOf(ctx context.Context) *runScope {
	if ctx == nil {
		return nil
	}
	rs, _ := ctx.Value(runKeyType{}).(*runScope)
	return rs
}

// WithRun returns a context carrying the logger and run ID for code that
// is not handed a logger directly. An existing run scope is replaced.
func WithRun(ctx context.Context, log Logger, runID string) context.Context {
	if log == nil {
		log = newLeveledLogger(LogLevelDisabled)
	}
	return context.WithValue(ctx, runKeyType{}, &runScope{log: log, runID: runID})
}

// FromContext returns the run logger, or a disabled logger if the context
// has no run scope.
func FromContext(ctx context.Context) Logger {
	if rs := scopeOf(ctx); rs != nil {
		return rs.log
	}
	return newLeveledLogger(LogLevelDisabled)
}

// RunID returns the run ID attached to the context, if any.
func RunID(ctx context.Context) string {
	if rs := scopeOf(ctx); rs != nil {
		return rs.runID
	}
	return ""
}
