//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/daos-stack/dharness/lib/txtfmt"
	"github.com/daos-stack/dharness/workload"
)

// FaultState describes how far the fault injector got when the verdict
// was produced.
type FaultState string

const (
	// FaultNone means no fault plan was supplied.
	FaultNone FaultState = "none"
	// FaultSkipped means the workload finished before the settle delay.
	FaultSkipped FaultState = "skipped"
	// FaultRunning means injection was still in flight.
	FaultRunning FaultState = "running"
	// FaultDone means injection completed successfully.
	FaultDone FaultState = "done"
	// FaultFailed means injection returned an error.
	FaultFailed FaultState = "failed"
)

// Verdict is the single outcome of an orchestrated run.
type Verdict struct {
	Name     string             `json:"name"`
	RunID    string             `json:"run_id"`
	Status   workload.Status    `json:"status"`
	Results  []*workload.Result `json:"results"`
	Faults   FaultState         `json:"faults"`
	FaultErr error              `json:"-"`
	Elapsed  time.Duration      `json:"elapsed"`
}

// Passed returns true if the run passed.
func (v *Verdict) Passed() bool {
	return v != nil && v.Status == workload.StatusPass
}

// Reason summarizes why the run failed.
func (v *Verdict) Reason() string {
	if v.Passed() {
		return ""
	}

	var reasons []string
	failed := 0
	for _, r := range v.Results {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		reasons = append(reasons, fmt.Sprintf("%d of %d %s failed", failed, len(v.Results),
			english.PluralWord(len(v.Results), "worker group", "")))
	}
	if len(v.Results) == 0 {
		reasons = append(reasons, "no worker results")
	}
	if v.FaultErr != nil {
		reasons = append(reasons, "fault injection: "+v.FaultErr.Error())
	}
	return strings.Join(reasons, "; ")
}

func (v *Verdict) MarshalJSON() ([]byte, error) {
	type toJSON Verdict
	var faultErr string
	if v.FaultErr != nil {
		faultErr = v.FaultErr.Error()
	}
	return json.Marshal(&struct {
		*toJSON
		FaultErr string `json:"fault_error,omitempty"`
		Reason   string `json:"reason,omitempty"`
	}{
		toJSON:   (*toJSON)(v),
		FaultErr: faultErr,
		Reason:   v.Reason(),
	})
}

// Table renders per-group results.
func (v *Verdict) Table() string {
	tf := txtfmt.NewTableFormatter("Group", "Status", "Block Size", "Write MiB/s", "Read MiB/s", "Elapsed")
	var rows []txtfmt.TableRow
	for _, r := range v.Results {
		row := txtfmt.TableRow{
			"Group":   r.Group,
			"Status":  string(r.Status),
			"Elapsed": r.Elapsed.Round(time.Millisecond).String(),
		}
		if r.BlockSize > 0 {
			row["Block Size"] = humanize.IBytes(r.BlockSize)
		}
		for _, m := range r.Metrics {
			switch m.Operation {
			case "write":
				row["Write MiB/s"] = fmt.Sprintf("%.2f", m.MeanMiB)
			case "read":
				row["Read MiB/s"] = fmt.Sprintf("%.2f", m.MeanMiB)
			}
		}
		rows = append(rows, row)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (faults: %s, %s)\n", v.Name, v.Status, v.Faults, v.Elapsed.Round(time.Second))
	if reason := v.Reason(); reason != "" {
		fmt.Fprintf(&b, "  %s\n", reason)
	}
	b.WriteString(tf.Format(rows))
	return b.String()
}
