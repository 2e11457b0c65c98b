//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package dmg drives the dmg and daos command line tools and decodes their
// JSON output.
package dmg

import (
	"context"
	"encoding/json"
	"net"
	"strings"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/hostlist"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
)

// Config selects the tools and the node they are run from.
type Config struct {
	DmgPath    string `yaml:"dmg_path,omitempty"`
	DaosPath   string `yaml:"daos_path,omitempty"`
	ConfigFile string `yaml:"config_file,omitempty"`
	Insecure   bool   `yaml:"insecure,omitempty"`
	Host       string `yaml:"host,omitempty"`
}

// Client runs dmg and daos commands through an executor.
type Client struct {
	log  logging.Logger
	exec remote.Executor
	cfg  Config
}

// NewClient returns a Client for the supplied configuration.
func NewClient(log logging.Logger, exec remote.Executor, cfg Config) *Client {
	if cfg.DmgPath == "" {
		cfg.DmgPath = "dmg"
	}
	if cfg.DaosPath == "" {
		cfg.DaosPath = "daos"
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	return &Client{log: log, exec: exec, cfg: cfg}
}

// envelope is the common JSON wrapper emitted by dmg -j and daos -j.
type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *string         `json:"error"`
	Status   int             `json:"status"`
}

type hostErrorSet struct {
	HostError string `json:"error"`
	Hosts     string `json:"hosts"`
}

type hostErrorsResp struct {
	HostErrors map[string]*hostErrorSet `json:"host_errors"`
}

func (her *hostErrorsResp) check(cmd string) error {
	var msgs []string
	for _, hes := range her.HostErrors {
		if hes != nil {
			msgs = append(msgs, hes.Hosts+": "+hes.HostError)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return FaultCommandFailed(cmd, strings.Join(msgs, "; "), 0)
}

func (c *Client) dmgCmd(args ...string) string {
	full := []string{c.cfg.DmgPath, "-j"}
	if c.cfg.Insecure {
		full = append(full, "-i")
	}
	if c.cfg.ConfigFile != "" {
		full = append(full, "-o", c.cfg.ConfigFile)
	}
	return remote.JoinArgs(append(full, args...)...)
}

func (c *Client) daosCmd(args ...string) string {
	return remote.JoinArgs(append([]string{c.cfg.DaosPath, "-j"}, args...)...)
}

// run executes the command and decodes the response payload into out.
func (c *Client) run(ctx context.Context, out interface{}, cmd string) error {
	c.log.Debugf("dmg: %s", cmd)

	res, err := c.exec.Exec(ctx, c.cfg.Host, cmd)
	if err != nil {
		return errors.Wrapf(err, "running %q", cmd)
	}

	var env envelope
	if err := json.Unmarshal([]byte(res.Stdout), &env); err != nil {
		if !res.Succeeded() {
			return remote.FaultCommandFailed(res)
		}
		return FaultBadResponse(cmd, err)
	}
	if env.Error != nil && *env.Error != "" {
		return FaultCommandFailed(cmd, *env.Error, env.Status)
	}
	if env.Status != 0 || !res.Succeeded() {
		return FaultCommandFailed(cmd, strings.TrimSpace(res.Stderr), env.Status)
	}

	if out == nil {
		return nil
	}
	if len(env.Response) == 0 || string(env.Response) == "null" {
		return FaultBadResponse(cmd, errors.New("empty response"))
	}
	if err := json.Unmarshal(env.Response, out); err != nil {
		return FaultBadResponse(cmd, err)
	}
	return nil
}

// ExpandHosts expands a ranged host string as printed by dmg, dropping
// any port suffixes.
func ExpandHosts(in string) ([]string, error) {
	hosts, err := hostlist.Expand(in)
	if err != nil {
		return nil, err
	}
	for i, h := range hosts {
		if name, _, err := net.SplitHostPort(h); err == nil {
			hosts[i] = name
		}
	}
	return hosts, nil
}
