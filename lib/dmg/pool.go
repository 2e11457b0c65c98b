//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package dmg

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
)

// PoolCreate creates a pool.
func (c *Client) PoolCreate(ctx context.Context, req *PoolCreateReq) (*PoolCreateResp, error) {
	if req == nil || req.Label == "" {
		return nil, errors.New("pool create requires a label")
	}

	args := []string{"pool", "create", req.Label}
	switch {
	case req.Size != "":
		args = append(args, "--size="+req.Size)
	case req.ScmBytes > 0:
		args = append(args, "--scm-size="+strconv.FormatUint(req.ScmBytes, 10))
		if req.NvmeBytes > 0 {
			args = append(args, "--nvme-size="+strconv.FormatUint(req.NvmeBytes, 10))
		}
	default:
		return nil, errors.New("pool create requires a size")
	}
	if len(req.Ranks) > 0 {
		args = append(args, "--ranks="+req.Ranks.String())
	}
	for _, p := range req.Props {
		args = append(args, "--properties="+p)
	}

	var resp PoolCreateResp
	if err := c.run(ctx, &resp, c.dmgCmd(args...)); err != nil {
		return nil, err
	}
	resp.Label = req.Label
	return &resp, nil
}

// PoolQuery returns tier usage and rebuild state of a pool.
func (c *Client) PoolQuery(ctx context.Context, pool string) (*PoolInfo, error) {
	var resp PoolInfo
	if err := c.run(ctx, &resp, c.dmgCmd("pool", "query", pool)); err != nil {
		return nil, err
	}
	resp.normalize()
	return &resp, nil
}

// PoolDestroy destroys a pool, evicting any open handles.
func (c *Client) PoolDestroy(ctx context.Context, pool string) error {
	return c.run(ctx, nil, c.dmgCmd("pool", "destroy", pool, "--force"))
}

// Rebuilding reports whether the pool is currently rebuilding.
func (c *Client) Rebuilding(ctx context.Context, pool string) (bool, error) {
	pi, err := c.PoolQuery(ctx, pool)
	if err != nil {
		return false, err
	}
	if pi.Rebuild == nil {
		return false, FaultBadResponse(c.dmgCmd("pool", "query", pool), errors.New("no rebuild status"))
	}
	return pi.Rebuilding(), nil
}

// ContainerCreate creates a container in the pool.
func (c *Client) ContainerCreate(ctx context.Context, req *ContainerCreateReq) (*ContainerCreateResp, error) {
	if req == nil || req.Pool == "" || req.Label == "" {
		return nil, errors.New("container create requires a pool and label")
	}

	args := []string{"container", "create", req.Pool, req.Label}
	if req.Type != "" {
		args = append(args, "--type="+req.Type)
	}
	if req.ObjectClass != "" {
		args = append(args, "--oclass="+req.ObjectClass)
	}
	for _, p := range req.Props {
		args = append(args, "--properties="+p)
	}

	var resp ContainerCreateResp
	if err := c.run(ctx, &resp, c.daosCmd(args...)); err != nil {
		return nil, err
	}
	if resp.Label == "" {
		resp.Label = req.Label
	}
	return &resp, nil
}
