//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package remote

import (
	"context"
	"strings"
	"sync"
)

// MockRule matches a host/command pair and supplies a canned response.
// Empty Host matches any host; Contains must be a substring of the command.
// When Results is set, successive matches consume it in order and the last
// entry repeats.
type MockRule struct {
	Host     string
	Contains string
	Stdout   string
	Stderr   string
	Exit     int
	Err      error
	Results  []*Result
	Hook     func(host, cmd string)

	used int
}

// MockCall records a command passed to MockExecutor.
type MockCall struct {
	Host string
	Cmd  string
}

// MockExecutor is an Executor for tests.
type MockExecutor struct {
	sync.Mutex
	Rules []*MockRule
	Calls []MockCall
}

// NewMockExecutor returns a MockExecutor with the supplied rules.
func NewMockExecutor(rules ...*MockRule) *MockExecutor {
	return &MockExecutor{Rules: rules}
}

// Exec returns the response of the first matching rule, or an empty
// successful result when no rule matches.
func (m *MockExecutor) Exec(ctx context.Context, host, cmd string) (*Result, error) {
	m.Lock()
	m.Calls = append(m.Calls, MockCall{Host: host, Cmd: cmd})

	var rule *MockRule
	for _, r := range m.Rules {
		if (r.Host == "" || r.Host == host) && strings.Contains(cmd, r.Contains) {
			rule = r
			break
		}
	}
	if rule == nil {
		m.Unlock()
		return &Result{Host: host, Command: cmd}, nil
	}

	var res *Result
	if len(rule.Results) > 0 {
		idx := rule.used
		if idx >= len(rule.Results) {
			idx = len(rule.Results) - 1
		}
		cp := *rule.Results[idx]
		res = &cp
	} else {
		res = &Result{Stdout: rule.Stdout, Stderr: rule.Stderr, ExitStatus: rule.Exit}
	}
	rule.used++
	res.Host, res.Command = host, cmd
	hook, err := rule.Hook, rule.Err
	m.Unlock()

	if hook != nil {
		hook(host, cmd)
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, nil
}

// CallsMatching returns the recorded commands containing substr.
func (m *MockExecutor) CallsMatching(substr string) []MockCall {
	m.Lock()
	defer m.Unlock()

	var out []MockCall
	for _, c := range m.Calls {
		if strings.Contains(c.Cmd, substr) {
			out = append(out, c)
		}
	}
	return out
}
