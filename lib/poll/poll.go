//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package poll provides a bounded wait on external state, parameterized
// by a predicate, a polling interval and a timeout.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Predicate reports whether the awaited condition holds. A non-nil error
// ends the wait immediately.
type Predicate func(ctx context.Context) (bool, error)

// TimeoutError is returned when the predicate did not hold before the
// timeout elapsed.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %s (%d checks)", e.Timeout, e.Attempts)
}

// IsTimeout indicates whether the error resulted from an expired wait.
func IsTimeout(err error) bool {
	_, ok := errors.Cause(err).(*TimeoutError)
	return ok
}

var errNotYet = errors.New("condition not yet met")

// Options control a single wait.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// Notify, if set, is called after each unsuccessful check.
	Notify func(attempt int, next time.Duration)
}

// Until calls pred every interval until it returns true, returns an error,
// or the timeout expires. The first check happens immediately. Waits are
// always bounded; a zero timeout is rejected.
func Until(ctx context.Context, opts Options, pred Predicate) error {
	if pred == nil {
		return errors.New("nil predicate")
	}
	if opts.Timeout <= 0 {
		return errors.Errorf("invalid poll timeout %s", opts.Timeout)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}

	tctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	attempts := 0
	op := func() error {
		attempts++
		done, err := pred(tctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errNotYet
		}
		return nil
	}

	var notify backoff.Notify
	if opts.Notify != nil {
		notify = func(_ error, next time.Duration) {
			opts.Notify(attempts, next)
		}
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(opts.Interval), tctx)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case tctx.Err() != nil:
		return &TimeoutError{Timeout: opts.Timeout, Attempts: attempts}
	default:
		return err
	}
}
