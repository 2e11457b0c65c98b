//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package pretty provides pretty-printers for harness results.
package pretty

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/txtfmt"
	"github.com/daos-stack/dharness/report"
	"github.com/daos-stack/dharness/scenario"
)

// PrintFleetCapacity writes the per-node capacities followed by the fleet
// capacity derived from them.
func PrintFleetCapacity(out io.Writer, fc *capacity.FleetCapacity, nodes []*capacity.NodeCapacity) {
	if len(nodes) > 0 {
		hostTitle := "Host"
		engTitle := "Engine"
		scmTitle := "SCM Free"
		nvmeTitle := "NVMe Free"

		tf := txtfmt.NewTableFormatter(hostTitle, engTitle, scmTitle, nvmeTitle)
		var table []txtfmt.TableRow
		for _, nc := range nodes {
			for _, idx := range nc.EngineIndexes() {
				tb := nc.Engines[idx]
				table = append(table, txtfmt.TableRow{
					hostTitle: nc.Host,
					engTitle:  fmt.Sprintf("%d", idx),
					scmTitle:  humanize.IBytes(tb.Tier0),
					nvmeTitle: humanize.IBytes(tb.Tier1),
				})
			}
		}
		fmt.Fprintln(out, tf.Format(table))
	}

	if fc == nil {
		return
	}
	fmt.Fprint(out, txtfmt.FormatEntity("Fleet Capacity", [][2]string{
		{"Nodes", fmt.Sprintf("%d", fc.Nodes)},
		{"Margin", fmt.Sprintf("%g", fc.Margin)},
		{"SCM (tier 0)", fmt.Sprintf("%s (%d)", humanize.IBytes(fc.Tier0), fc.Tier0)},
		{"NVMe (tier 1)", fmt.Sprintf("%s (%d)", humanize.IBytes(fc.Tier1), fc.Tier1)},
	}))
}

// PrintScenarios writes the registered scenarios.
func PrintScenarios(out io.Writer, scenarios []*scenario.Scenario) {
	nameTitle := "Name"
	tagsTitle := "Tags"
	descTitle := "Description"

	tf := txtfmt.NewTableFormatter(nameTitle, tagsTitle, descTitle)
	var table []txtfmt.TableRow
	for _, s := range scenarios {
		table = append(table, txtfmt.TableRow{
			nameTitle: s.Name,
			tagsTitle: strings.Join(s.Tags, ","),
			descTitle: s.Description,
		})
	}
	fmt.Fprint(out, tf.Format(table))
}

// PrintOutcomes writes one row per scenario, then the notes and failure of
// each scenario that did not pass.
func PrintOutcomes(out io.Writer, outcomes []*scenario.Outcome) {
	nameTitle := "Scenario"
	statusTitle := "Status"
	elapsedTitle := "Elapsed"
	runsTitle := "Runs"

	tf := txtfmt.NewTableFormatter(nameTitle, statusTitle, runsTitle, elapsedTitle)
	var table []txtfmt.TableRow
	var failed int
	for _, o := range outcomes {
		if !o.Passed() && !o.Skipped() {
			failed++
		}
		table = append(table, txtfmt.TableRow{
			nameTitle:    o.Name,
			statusTitle:  o.Status(),
			runsTitle:    fmt.Sprintf("%d", len(o.Verdicts)),
			elapsedTitle: o.Elapsed.Round(time.Second).String(),
		})
	}
	fmt.Fprintln(out, tf.Format(table))

	for _, o := range outcomes {
		if o.Passed() {
			continue
		}
		fmt.Fprintf(out, "%s: %s\n", o.Name, o.Err)
		for _, note := range o.Notes {
			fmt.Fprintf(out, "  %s\n", note)
		}
		for _, v := range o.Verdicts {
			if !v.Passed() {
				fmt.Fprintln(out, v.Table())
			}
		}
	}

	if failed > 0 {
		fmt.Fprintf(out, "%d of %d %s failed\n", failed, len(outcomes),
			english.PluralWord(len(outcomes), "scenario", ""))
	}
}

// PrintDevices writes the devices of each host, sorted by host then rank.
func PrintDevices(out io.Writer, devices []*dmg.Device) {
	hostTitle := "Host"
	uuidTitle := "UUID"
	rankTitle := "Rank"
	stateTitle := "State"

	sorted := append([]*dmg.Device{}, devices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Host != sorted[j].Host {
			return sorted[i].Host < sorted[j].Host
		}
		return sorted[i].Rank < sorted[j].Rank
	})

	tf := txtfmt.NewTableFormatter(hostTitle, uuidTitle, rankTitle, stateTitle)
	var table []txtfmt.TableRow
	for _, d := range sorted {
		table = append(table, txtfmt.TableRow{
			hostTitle:  d.Host,
			uuidTitle:  d.UUID,
			rankTitle:  d.Rank.String(),
			stateTitle: d.State,
		})
	}
	fmt.Fprint(out, tf.Format(table))
}

// PrintTestSuites summarizes JUnit results.
func PrintTestSuites(out io.Writer, ts *report.TestSuites) {
	nameTitle := "Suite"
	testsTitle := "Tests"
	failTitle := "Failures"
	skipTitle := "Skipped"

	tf := txtfmt.NewTableFormatter(nameTitle, testsTitle, failTitle, skipTitle)
	var table []txtfmt.TableRow
	for _, s := range ts.TestSuites {
		table = append(table, txtfmt.TableRow{
			nameTitle:  s.Name,
			testsTitle: fmt.Sprintf("%d", s.Tests),
			failTitle:  fmt.Sprintf("%d", s.Failures+s.Errors),
			skipTitle:  fmt.Sprintf("%d", s.Skipped),
		})
	}
	fmt.Fprint(out, tf.Format(table))
}
