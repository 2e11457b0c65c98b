//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertbit/columnize"
	"github.com/desertbit/go-shlex"
	"github.com/desertbit/grumble"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/build"
	"github.com/daos-stack/dharness/cmd/dharness/pretty"
	"github.com/daos-stack/dharness/logging"
)

const shellCommandsHeader = "Available commands:\n\n"

// shellCmd runs harness commands against a single runtime, either
// interactively or from a command file.
type shellCmd struct {
	logCmd
	ctxCmd
	cfgCmd
	runtimeCmd
	jsonOutputCmd
	CmdFile      string `short:"f" long:"cmd-file" description:"Path to a file containing a sequence of shell commands to execute"`
	ListCommands bool   `long:"list-commands" description:"List the shell commands and exit"`

	rt *runtime
}

// sharedRuntime builds the shell's runtime on first use so that listing commands
// never connects to the cluster.
func (cmd *shellCmd) sharedRuntime() (*runtime, error) {
	if cmd.rt != nil {
		return cmd.rt, nil
	}
	rt, err := cmd.buildRuntime(cmd.context(), cmd.log, cmd.config)
	if err != nil {
		return nil, err
	}
	cmd.rt = rt
	return rt, nil
}

func (cmd *shellCmd) close() {
	if cmd.rt == nil {
		return
	}
	if err := cmd.rt.Close(); err != nil {
		cmd.log.Errorf("closing runtime: %s", err)
	}
	cmd.rt = nil
}

func (cmd *shellCmd) output(v interface{}, printer func(io.Writer)) error {
	if cmd.jsonOutputEnabled() {
		return cmd.outputJSON(v)
	}
	printer(cmd.writer)
	return nil
}

func (cmd *shellCmd) addCommands(app *grumble.App) {
	app.AddCommand(&grumble.Command{
		Name:    "capacity",
		Aliases: []string{"cap"},
		Help:    "Probe the usable capacity of the server nodes",
		Flags: func(f *grumble.Flags) {
			f.Bool("n", "nodes", false, "Show the per-engine capacity of each node")
			f.Bool("i", "invalidate", false, "Drop cached capacities before probing")
		},
		Run: func(c *grumble.Context) error {
			rt, err := cmd.sharedRuntime()
			if err != nil {
				return err
			}
			if c.Flags.Bool("invalidate") && rt.cache != nil {
				if err := rt.cache.Invalidate(); err != nil {
					return err
				}
			}
			res, err := probeCapacity(cmd.context(), rt, cmd.config.Servers, c.Flags.Bool("nodes"))
			if err != nil {
				return err
			}
			return cmd.output(res, func(w io.Writer) { printCapacity(w, res) })
		},
	})
	app.AddCommand(&grumble.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Help:    "List the available test scenarios",
		Args: func(a *grumble.Args) {
			a.StringList("filter", "Scenario names or tags")
		},
		Run: func(c *grumble.Context) error {
			scenarios, err := listScenarios(c.Args.StringList("filter"))
			if err != nil {
				return err
			}
			return cmd.output(scenarios, func(w io.Writer) { pretty.PrintScenarios(w, scenarios) })
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "run",
		Help: "Run test scenarios against the cluster",
		Flags: func(f *grumble.Flags) {
			f.String("r", "run-id", "", "Identifier for this run (default: random UUID)")
		},
		Args: func(a *grumble.Args) {
			a.StringList("scenarios", "Scenario names or tags", grumble.Min(1))
		},
		Run: func(c *grumble.Context) error {
			runID := c.Flags.String("run-id")
			if runID == "" {
				runID = uuid.New().String()
			}
			rs, err := cmd.runScenarios(runID, c.Args.StringList("scenarios"))
			if err != nil {
				return err
			}
			if err := cmd.output(rs, func(w io.Writer) { pretty.PrintOutcomes(w, rs.Outcomes) }); err != nil {
				return err
			}
			if failed := rs.Failed(); failed > 0 {
				return errors.Errorf("run %s: %d of %d scenarios failed", runID, failed, len(rs.Outcomes))
			}
			return nil
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "devices",
		Help: "List the storage devices of the configured servers",
		Run: func(c *grumble.Context) error {
			rt, err := cmd.sharedRuntime()
			if err != nil {
				return err
			}
			devs, err := listDevices(cmd.context(), rt, cmd.config.Servers)
			if err != nil {
				return err
			}
			return cmd.output(devs, func(w io.Writer) { pretty.PrintDevices(w, devs) })
		},
	})
	app.AddCommand(&grumble.Command{
		Name: "version",
		Help: "Print dharness version",
		Run: func(c *grumble.Context) error {
			fmt.Fprintf(cmd.writer, "%s version %s\n", build.HarnessName, build.HarnessVersion)
			return nil
		},
	})
	// grumble also includes a builtin exit command
	app.AddCommand(&grumble.Command{
		Name:    "quit",
		Aliases: []string{"q"},
		Help:    "exit the shell",
		Run: func(c *grumble.Context) error {
			c.Stop()
			return nil
		},
	})
}

// runScenarios runs scenarios on a runtime owned by the run so that every
// run starts from fresh cluster and claim state.
func (cmd *shellCmd) runScenarios(runID string, names []string) (*runSummary, error) {
	rs, rt, err := runScenarios(cmd.context(), cmd.log, cmd.config, cmd.buildRuntime, runID, names)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	files, err := writeResults(cmd.log, cmd.config, rs)
	if err != nil {
		return nil, err
	}
	rs.Files = files
	return rs, nil
}

func newShellApp() *grumble.App {
	homedir, err := os.UserHomeDir()
	if err != nil {
		homedir = "/tmp"
	}
	return grumble.New(&grumble.Config{
		Name:        build.HarnessName,
		HistoryFile: filepath.Join(homedir, "."+build.HarnessName+"_history"),
		Prompt:      build.HarnessName + ":  ",
	})
}

// runFileCmds runs each line of fileName as a shell command, stopping at the
// first failure. Blank lines and lines starting with '#' are skipped.
func runFileCmds(log logging.Logger, app *grumble.App, fileName string) error {
	file, err := os.Open(fileName)
	if err != nil {
		return errors.Wrapf(err, "Error opening file %q", fileName)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Errorf("Error closing %q: %s\n", fileName, err)
		}
	}()

	log.Debugf("Running commands in %q\n", fileName)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineStr := scanner.Text()
		lineCmd, err := shlex.Split(lineStr, true)
		if err != nil {
			return errors.Wrapf(err, "Failed running command %q", lineStr)
		}
		if len(lineCmd) == 0 || strings.HasPrefix(lineCmd[0], "#") {
			continue
		}
		log.Debugf("Running Command %q\n", lineStr)
		if err := app.RunCommand(lineCmd); err != nil {
			return errors.Wrapf(err, "Failed running command %q", lineStr)
		}
	}

	return scanner.Err()
}

// printCommands writes the shell commands and their help in columns.
func printCommands(out io.Writer, app *grumble.App) {
	var output []string
	for _, c := range app.Commands().All() {
		if c.Name == "quit" {
			continue
		}
		output = append(output, c.Name+columnize.DefaultConfig().Delim+c.Help)
	}
	fmt.Fprint(out, shellCommandsHeader+columnize.SimpleFormat(output)+"\n")
}

func (cmd *shellCmd) Execute(_ []string) error {
	app := newShellApp()
	cmd.addCommands(app)
	defer cmd.close()

	if cmd.ListCommands {
		printCommands(cmd.writer, app)
		return nil
	}

	if cmd.CmdFile != "" {
		return runFileCmds(cmd.log, app, cmd.CmdFile)
	}

	// app.Run() uses the os.Args so need to clear them before running
	os.Args = []string{}
	return app.Run()
}
