//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package test provides helpers shared by the harness unit tests.
package test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/logging"
)

// AssertTrue asserts b is true.
func AssertTrue(t *testing.T, b bool, message string) {
	t.Helper()

	if !b {
		t.Fatal(message)
	}
}

// AssertFalse asserts b is false.
func AssertFalse(t *testing.T, b bool, message string) {
	t.Helper()

	if b {
		t.Fatal(message)
	}
}

// AssertEqual asserts b is equal to a.
func AssertEqual(t *testing.T, a, b interface{}, message string) {
	t.Helper()

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("%s: (-want, +got):\n%s", message, diff)
	}
}

// AssertStringsEqual compares two string slices, ignoring order.
func AssertStringsEqual(t *testing.T, a, b []string, message string) {
	t.Helper()

	toSet := func(in []string) map[string]int {
		out := make(map[string]int)
		for _, s := range in {
			out[s]++
		}
		return out
	}
	if diff := cmp.Diff(toSet(a), toSet(b)); diff != "" {
		t.Fatalf("%s: (-want, +got):\n%s", message, diff)
	}
}

// CmpErrBool compares two errors for presence only.
func CmpErrBool(want, got error) bool {
	return (want == nil) == (got == nil)
}

// CmpErr compares two errors for equality or at least close similarity in
// their messages. Faults are compared by code.
func CmpErr(t *testing.T, want, got error) {
	t.Helper()

	if want == got {
		return
	}
	if want == nil || got == nil {
		t.Fatalf("\nunexpected error (wanted: %v, got: %v)", want, got)
	}

	if wf, ok := errors.Cause(want).(*fault.Fault); ok {
		if !wf.Equals(got) {
			t.Fatalf("\nunexpected fault (wanted: %v, got: %v)", want, got)
		}
		return
	}

	if !strings.Contains(got.Error(), want.Error()) {
		t.Fatalf("\nunexpected error (wanted: %s, got: %s)", want, got)
	}
}

// ShowBufferOnFailure displays captured output on test failure. Should be
// deferred in the test function.
func ShowBufferOnFailure(t *testing.T, buf fmt.Stringer) {
	t.Helper()

	if t.Failed() {
		fmt.Println(buf.String())
	}
}

// Context returns a context that is canceled when the test completes.
func Context(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

// LoggingContext returns a test context carrying the supplied logger in a
// run scope named after the test.
func LoggingContext(t *testing.T, log logging.Logger) context.Context {
	t.Helper()

	return logging.WithRun(Context(t), log, t.Name())
}

// MustTimeout fails the test if fn does not return within the timeout.
func MustTimeout(t *testing.T, timeout time.Duration, fn func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("timed out after %s", timeout)
	}
}

// MockUUID returns a deterministic UUID string based on the supplied seed.
func MockUUID(idxList ...int32) string {
	idx := int32(0)
	if len(idxList) > 0 {
		idx = idxList[0]
	}
	return fmt.Sprintf("%08d-%04d-%04d-%04d-%012d", idx, idx, idx, idx, idx)
}
