//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/build"
	"github.com/daos-stack/dharness/config"
	"github.com/daos-stack/dharness/fault"
	"github.com/daos-stack/dharness/logging"
)

type (
	// cmdLogger is implemented by commands which log.
	cmdLogger interface {
		setLog(*logging.LeveledLogger)
	}

	logCmd struct {
		log *logging.LeveledLogger
	}

	// ctxSetter is implemented by commands which block on the cluster.
	ctxSetter interface {
		setContext(context.Context)
	}

	ctxCmd struct {
		ctx context.Context
	}

	jsonOutputter interface {
		enableJsonOutput(bool, io.Writer)
		jsonOutputEnabled() bool
		outputJSON(interface{}) error
	}

	jsonOutputCmd struct {
		shouldEmitJSON bool
		writer         io.Writer
	}

	// cmdConfigSetter is implemented by commands which need the harness
	// configuration.
	cmdConfigSetter interface {
		setConfig(*config.Harness)
	}

	cfgCmd struct {
		config *config.Harness
	}

	// runtimeUser is implemented by commands which drive the cluster.
	runtimeUser interface {
		setRuntimeBuilder(runtimeBuilder)
	}

	runtimeCmd struct {
		buildRuntime runtimeBuilder
	}
)

func (c *logCmd) setLog(log *logging.LeveledLogger) {
	c.log = log
}

func (c *ctxCmd) setContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *ctxCmd) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (cmd *jsonOutputCmd) enableJsonOutput(emitJson bool, w io.Writer) {
	cmd.shouldEmitJSON = emitJson
	cmd.writer = w
}

func (cmd *jsonOutputCmd) jsonOutputEnabled() bool {
	return cmd.shouldEmitJSON
}

func (cmd *jsonOutputCmd) outputJSON(in interface{}) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}

	_, err = cmd.writer.Write(append(data, []byte("\n")...))
	return err
}

func (c *cfgCmd) setConfig(cfg *config.Harness) {
	c.config = cfg
}

func (c *runtimeCmd) setRuntimeBuilder(b runtimeBuilder) {
	c.buildRuntime = b
}

type cliOptions struct {
	Debug      bool        `short:"d" long:"debug" description:"Enable debug output"`
	JSON       bool        `short:"j" long:"json" description:"Enable JSON output"`
	JSONLogs   bool        `short:"J" long:"json-logging" description:"Enable JSON-formatted log output"`
	ConfigPath string      `short:"o" long:"config-path" description:"Harness config file path"`
	Capacity   capacityCmd `command:"capacity" alias:"cap" description:"Probe the usable capacity of the server nodes"`
	Run        runCmd      `command:"run" description:"Run test scenarios against the cluster"`
	List       listCmd     `command:"list" alias:"ls" description:"List the available test scenarios"`
	Fault      faultCmd    `command:"fault" alias:"fi" description:"Inspect and fault storage devices"`
	Report     reportCmd   `command:"report" description:"Merge and publish JUnit results"`
	Shell      shellCmd    `command:"shell" description:"Run harness commands interactively or from a file"`
	Version    versionCmd  `command:"version" description:"Print dharness version"`
}

type versionCmd struct {
	jsonOutputCmd
}

func (cmd *versionCmd) Execute(_ []string) error {
	if cmd.jsonOutputEnabled() {
		return cmd.outputJSON(map[string]string{
			"name":    build.HarnessName,
			"version": build.HarnessVersion,
		})
	}
	fmt.Fprintf(cmd.writer, "%s version %s\n", build.HarnessName, build.HarnessVersion)
	return nil
}

func exitWithError(log logging.Logger, err error) {
	cmdName := path.Base(os.Args[0])
	log.Errorf("%s: %v", cmdName, err)
	if fault.HasResolution(err) {
		log.Errorf("%s: %s", cmdName, fault.ShowResolutionFor(err))
	}
	os.Exit(1)
}

// loadConfig reads and validates the harness configuration. The log level
// and format are taken from the file unless overridden on the command line.
func loadConfig(log *logging.LeveledLogger, opts *cliOptions) (*config.Harness, error) {
	cfg := config.DefaultHarness()
	if err := cfg.SetPath(opts.ConfigPath); err != nil {
		return nil, errors.Wrapf(err, "harness config %q", opts.ConfigPath)
	}
	if err := cfg.Load(); err != nil {
		return nil, errors.WithMessagef(err, "failed to load harness configuration from %s", cfg.Path)
	}
	log.Debugf("harness config loaded from %s", cfg.Path)

	if !opts.Debug {
		log.SetLevel(cfg.LogLevel)
	}
	if cfg.LogJSON && !opts.JSONLogs {
		log.WithJSONOutput()
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "opening log file %s", cfg.LogFile)
		}
		log.AddCombinedOutput(build.HarnessName+" ", f)
	}

	if err := cfg.Validate(log); err != nil {
		return nil, errors.WithMessage(err, "invalid harness configuration")
	}
	return cfg, nil
}

func parseOpts(ctx context.Context, args []string, opts *cliOptions, log *logging.LeveledLogger, stdout io.Writer, builder runtimeBuilder) error {
	p := flags.NewParser(opts, flags.Default)
	p.Options ^= flags.PrintErrors // Don't allow the library to print errors
	p.Name = build.HarnessName
	p.ShortDescription = "DAOS cluster test-orchestration harness"
	p.LongDescription = `dharness discovers the usable storage capacity of a DAOS server fleet,
runs parallel IOR workloads from client nodes while faulting devices or
stopping ranks, and judges the combined results. Scenarios are selected by
name or tag and their outcomes are written as JUnit XML.`
	p.CommandHandler = func(cmd flags.Commander, args []string) error {
		if cmd == nil {
			return nil
		}

		if opts.Debug {
			log.WithLogLevel(logging.LogLevelDebug)
			log.Debug("debug output enabled")
		}
		if opts.JSONLogs {
			log.WithJSONOutput()
		}

		if jsonCmd, ok := cmd.(jsonOutputter); ok {
			jsonCmd.enableJsonOutput(opts.JSON, stdout)
		}
		if logCmd, ok := cmd.(cmdLogger); ok {
			logCmd.setLog(log)
		}
		if ctxCmd, ok := cmd.(ctxSetter); ok {
			ctxCmd.setContext(ctx)
		}
		if rtCmd, ok := cmd.(runtimeUser); ok {
			rtCmd.setRuntimeBuilder(builder)
		}
		if cfgCmd, ok := cmd.(cmdConfigSetter); ok {
			cfg, err := loadConfig(log, opts)
			if err != nil {
				return err
			}
			cfgCmd.setConfig(cfg)
		}

		return cmd.Execute(args)
	}

	_, err := p.ParseArgs(args)
	return err
}

func main() {
	var opts cliOptions
	log := logging.NewCommandLineLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := parseOpts(ctx, os.Args[1:], &opts, log, os.Stdout, newRuntime); err != nil {
		stop()
		exitWithError(log, err)
	}
}
