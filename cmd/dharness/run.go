//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/build"
	"github.com/daos-stack/dharness/cmd/dharness/pretty"
	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/logging"
	"github.com/daos-stack/dharness/report"
	"github.com/daos-stack/dharness/scenario"
)

// runCmd runs the selected scenarios and records their outcomes.
type runCmd struct {
	logCmd
	ctxCmd
	cfgCmd
	runtimeCmd
	jsonOutputCmd
	RunID    string   `long:"run-id" description:"Identifier for this run (default: random UUID)"`
	Params   []string `short:"p" long:"param" description:"Scenario parameter as scenario.key=value (repeatable)"`
	NoReport bool     `long:"no-report" description:"Don't write result files"`
	Upload   bool     `short:"u" long:"upload" description:"Upload result files to the configured bucket"`
	Args     struct {
		Scenarios []string `positional-arg-name:"scenario|tag" required:"1"`
	} `positional-args:"yes"`
}

// runSummary is the JSON form of a run.
type runSummary struct {
	RunID    string              `json:"run_id"`
	Start    time.Time           `json:"start"`
	Outcomes []*scenario.Outcome `json:"outcomes"`
	Files    []string            `json:"files,omitempty"`
	Objects  []string            `json:"objects,omitempty"`
}

// Failed returns the number of scenarios that ran and failed.
func (rs *runSummary) Failed() int {
	var n int
	for _, o := range rs.Outcomes {
		if !o.Passed() && !o.Skipped() {
			n++
		}
	}
	return n
}

// applyParams sets scenario parameters given as scenario.key=value.
func applyParams(cfg *config.Harness, params []string) error {
	for _, p := range params {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			return errors.Errorf("invalid parameter %q (want scenario.key=value)", p)
		}
		sk := strings.SplitN(kv[0], ".", 2)
		if len(sk) != 2 || sk[0] == "" || sk[1] == "" {
			return errors.Errorf("invalid parameter name %q (want scenario.key)", kv[0])
		}
		if cfg.Scenarios == nil {
			cfg.Scenarios = make(map[string]map[string]string)
		}
		if cfg.Scenarios[sk[0]] == nil {
			cfg.Scenarios[sk[0]] = make(map[string]string)
		}
		cfg.Scenarios[sk[0]][sk[1]] = kv[1]
	}
	return nil
}

// writeResults writes the JUnit and JSON result files for a run into the
// report directory and returns their paths.
func writeResults(log logging.Logger, cfg *config.Harness, rs *runSummary) ([]string, error) {
	cases := make([]report.Case, 0, len(rs.Outcomes))
	for _, o := range rs.Outcomes {
		cases = append(cases, o.Case())
	}
	props := map[string]string{
		"run_id":  rs.RunID,
		"servers": cfg.Servers.String(),
		"clients": cfg.Clients.String(),
		"version": build.HarnessVersion,
	}
	ts := &report.TestSuites{TestSuites: []report.TestSuite{
		report.NewSuite(cfg.Name, build.HarnessName, rs.Start, props, cases...),
	}}

	xmlPath := filepath.Join(cfg.ReportDir, rs.RunID+".xml")
	if err := ts.WriteFile(xmlPath); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(rs, "", "  ")
	if err != nil {
		return nil, err
	}
	jsonPath := filepath.Join(cfg.ReportDir, rs.RunID+".json")
	if err := os.WriteFile(jsonPath, append(data, '\n'), 0644); err != nil {
		return nil, errors.Wrapf(err, "writing %s", jsonPath)
	}

	files := []string{xmlPath, jsonPath}
	if cfg.Metrics.TextFile != "" {
		files = append(files, cfg.Metrics.TextFile)
	}
	log.Infof("results written to %s", strings.Join(files, ", "))
	return files, nil
}

func uploadResults(ctx context.Context, log logging.Logger, cfg *config.Harness, runID string, files []string) ([]string, error) {
	if cfg.Upload.Bucket == "" {
		return nil, config.FaultConfigInvalid("upload requires 'upload.bucket'")
	}
	store, err := report.NewGCSStore(ctx, cfg.Upload.Bucket, cfg.Upload.CredentialsFile)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return report.NewUploader(log, store, cfg.Upload.Prefix).Upload(ctx, runID, files...)
}

// runScenarios runs the named scenarios with a runtime built from the
// command's config.
func runScenarios(ctx context.Context, log logging.Logger, cfg *config.Harness, newRT runtimeBuilder, runID string, names []string) (*runSummary, *runtime, error) {
	selected, err := scenario.Default().Select(names...)
	if err != nil {
		return nil, nil, err
	}

	rt, err := newRT(ctx, log, cfg)
	if err != nil {
		return nil, nil, err
	}

	if rt.metrics != nil && cfg.Metrics.Listen != "" {
		addr, stop, err := rt.metrics.StartExporter(log, cfg.Metrics.Listen)
		if err != nil {
			rt.Close()
			return nil, nil, err
		}
		log.Debugf("metrics available at http://%s/metrics", addr)
		defer stop()
	}

	rs := &runSummary{RunID: runID, Start: time.Now()}
	log.Noticef("run %s: %s on %s", runID,
		english.Plural(len(selected), "scenario", ""), cfg.Summary())
	rs.Outcomes = scenario.RunAll(ctx, rt.scenarioEnv(runID), selected)

	if rt.metrics != nil && cfg.Metrics.TextFile != "" {
		if err := rt.metrics.WriteTextFile(cfg.Metrics.TextFile); err != nil {
			log.Errorf("writing metrics: %s", err)
		}
	}
	return rs, rt, nil
}

func (cmd *runCmd) Execute(_ []string) error {
	if err := applyParams(cmd.config, cmd.Params); err != nil {
		return err
	}
	runID := cmd.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	ctx := cmd.context()
	rs, rt, err := runScenarios(ctx, cmd.log, cmd.config, cmd.buildRuntime, runID, cmd.Args.Scenarios)
	if err != nil {
		return err
	}
	defer rt.Close()

	if !cmd.NoReport {
		files, err := writeResults(cmd.log, cmd.config, rs)
		if err != nil {
			return err
		}
		rs.Files = files

		if cmd.Upload {
			objects, err := uploadResults(ctx, cmd.log, cmd.config, runID, files)
			rs.Objects = objects
			if err != nil {
				return err
			}
		}
	}

	if cmd.jsonOutputEnabled() {
		if err := cmd.outputJSON(rs); err != nil {
			return err
		}
	} else {
		pretty.PrintOutcomes(cmd.writer, rs.Outcomes)
	}

	if failed := rs.Failed(); failed > 0 {
		return errors.Errorf("run %s: %d of %d %s failed", runID, failed, len(rs.Outcomes),
			english.PluralWord(len(rs.Outcomes), "scenario", ""))
	}
	return nil
}
