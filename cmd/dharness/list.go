//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"github.com/daos-stack/dharness/cmd/dharness/pretty"
	"github.com/daos-stack/dharness/scenario"
)

// listCmd lists the registered scenarios, optionally filtered by name or
// tag.
type listCmd struct {
	jsonOutputCmd
	Args struct {
		Filter []string `positional-arg-name:"scenario|tag"`
	} `positional-args:"yes"`
}

type scenarioInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func listScenarios(filter []string) ([]*scenario.Scenario, error) {
	r := scenario.Default()
	if len(filter) == 0 {
		return r.List(), nil
	}
	return r.Select(filter...)
}

func (cmd *listCmd) Execute(_ []string) error {
	scenarios, err := listScenarios(cmd.Args.Filter)
	if err != nil {
		return err
	}

	if cmd.jsonOutputEnabled() {
		infos := make([]scenarioInfo, 0, len(scenarios))
		for _, s := range scenarios {
			infos = append(infos, scenarioInfo{Name: s.Name, Description: s.Description, Tags: s.Tags})
		}
		return cmd.outputJSON(infos)
	}

	pretty.PrintScenarios(cmd.writer, scenarios)
	return nil
}
