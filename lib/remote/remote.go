//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package remote runs shell commands on cluster nodes.
package remote

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Executor runs a command on a host and reports its exit status and output.
// A non-nil error indicates that the command could not be run at all; a
// command that ran and failed is reported through Result.ExitStatus.
type Executor interface {
	Exec(ctx context.Context, host, cmd string) (*Result, error)
}

// Result describes a completed command.
type Result struct {
	Host       string        `json:"host"`
	Command    string        `json:"command"`
	ExitStatus int           `json:"exit_status"`
	Stdout     string        `json:"stdout"`
	Stderr     string        `json:"stderr"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Succeeded indicates whether the command exited with status 0.
func (r *Result) Succeeded() bool {
	return r != nil && r.ExitStatus == 0
}

// Lines returns the non-empty lines of stdout.
func (r *Result) Lines() []string {
	if r == nil {
		return nil
	}
	var out []string
	for _, l := range strings.Split(r.Stdout, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %q exited %d", r.Host, r.Command, r.ExitStatus)
}

// Run executes the command and converts a non-zero exit status into a
// command fault.
func Run(ctx context.Context, e Executor, host, cmd string) (*Result, error) {
	res, err := e.Exec(ctx, host, cmd)
	if err != nil {
		return res, err
	}
	if !res.Succeeded() {
		return res, FaultCommandFailed(res)
	}
	return res, nil
}

// ShellQuote quotes s for safe use as a single POSIX shell word.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("-_./=:,+@%", r):
		return false
	}
	return true
}

// JoinArgs quotes and joins command arguments.
func JoinArgs(args ...string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = ShellQuote(a)
	}
	return strings.Join(quoted, " ")
}
