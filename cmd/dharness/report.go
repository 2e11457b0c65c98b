//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/cmd/dharness/pretty"
	"github.com/daos-stack/dharness/report"
)

type reportCmd struct {
	Coalesce reportCoalesceCmd `command:"coalesce" description:"Merge the JUnit results files in a directory"`
	Upload   reportUploadCmd   `command:"upload" description:"Upload result files to the configured bucket"`
}

// reportCoalesceCmd merges the per-run results files written by the run
// command into a single file.
type reportCoalesceCmd struct {
	logCmd
	jsonOutputCmd
	Output string `short:"o" long:"output" description:"Merged results file (default: <dir>.xml)"`
	Strict bool   `long:"strict" description:"Return an error if any merged case failed"`
	Args   struct {
		Dir string `positional-arg-name:"dir" required:"1"`
	} `positional-args:"yes"`
}

func (cmd *reportCoalesceCmd) Execute(_ []string) error {
	out := cmd.Output
	if out == "" {
		out = filepath.Clean(cmd.Args.Dir) + ".xml"
	}
	ts, err := report.Coalesce(cmd.Args.Dir, out)
	if err != nil {
		return err
	}
	cmd.log.Infof("merged %d suites into %s", len(ts.TestSuites), out)

	if cmd.jsonOutputEnabled() {
		if err := cmd.outputJSON(ts.TestSuites); err != nil {
			return err
		}
	} else {
		pretty.PrintTestSuites(cmd.writer, ts)
	}

	if cmd.Strict && ts.Failed() {
		return errors.Errorf("merged results in %s contain failures", out)
	}
	return nil
}

// reportUploadCmd uploads existing result files under a run's prefix.
type reportUploadCmd struct {
	logCmd
	ctxCmd
	cfgCmd
	jsonOutputCmd
	RunID string `long:"run-id" required:"1" description:"Run the files belong to"`
	Args  struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"yes"`
}

func (cmd *reportUploadCmd) Execute(_ []string) error {
	objects, err := uploadResults(cmd.context(), cmd.log, cmd.config, cmd.RunID, cmd.Args.Files)
	if err != nil {
		return err
	}

	if cmd.jsonOutputEnabled() {
		return cmd.outputJSON(objects)
	}
	for _, obj := range objects {
		fmt.Fprintf(cmd.writer, "gs://%s/%s\n", cmd.config.Upload.Bucket, obj)
	}
	return nil
}
