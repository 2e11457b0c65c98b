//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package config loads and validates the harness configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/daos-stack/dharness/capacity"
	"github.com/daos-stack/dharness/faultinject"
	"github.com/daos-stack/dharness/lib/dmg"
	"github.com/daos-stack/dharness/lib/hostlist"
	"github.com/daos-stack/dharness/lib/remote"
	"github.com/daos-stack/dharness/logging"
	"github.com/daos-stack/dharness/workload"
)

const (
	// DefaultConfigPath is used when no path is supplied.
	DefaultConfigPath = "/etc/daos/dharness.yml"
	defaultCacheDir   = "/var/tmp/dharness"
	defaultReportDir  = "./dharness_results"
	defaultSettle     = 60 * time.Second
	defaultPercent    = 75
	defaultTimeout    = time.Hour
)

// CapacityConfig configures the capacity prober.
type CapacityConfig struct {
	Source  string                   `yaml:"source"`
	Margin  float64                  `yaml:"margin"`
	Engines []capacity.EngineDevices `yaml:"engines,omitempty"`
	Quiesce bool                     `yaml:"quiesce,omitempty"`
	NoCache bool                     `yaml:"no_cache,omitempty"`
}

// WorkloadConfig configures the IOR launcher.
type WorkloadConfig struct {
	IorPath          string             `yaml:"ior_path,omitempty"`
	Mpi              workload.MpiConfig `yaml:"mpi,omitempty"`
	ScmTransferSize  Size               `yaml:"scm_transfer_size,omitempty"`
	NvmeTransferSize Size               `yaml:"nvme_transfer_size,omitempty"`
	Env              map[string]string  `yaml:"env,omitempty"`
	TestFile         string             `yaml:"test_file,omitempty"`
	DfusePath        string             `yaml:"dfuse_path,omitempty"`
	DfuseMount       string             `yaml:"dfuse_mount,omitempty"`
}

// Launcher returns the workload.Config for this section.
func (wc *WorkloadConfig) Launcher() workload.Config {
	return workload.Config{
		IorPath:          wc.IorPath,
		Mpi:              wc.Mpi,
		ScmTransferSize:  wc.ScmTransferSize.Bytes(),
		NvmeTransferSize: wc.NvmeTransferSize.Bytes(),
		Env:              wc.Env,
		TestFile:         wc.TestFile,
	}
}

// PoolConfig describes the pool created for a scenario. Size takes
// precedence over the explicit tier sizes.
type PoolConfig struct {
	Size       string   `yaml:"size,omitempty"`
	ScmSize    Size     `yaml:"scm_size,omitempty"`
	NvmeSize   Size     `yaml:"nvme_size,omitempty"`
	Properties []string `yaml:"properties,omitempty"`
}

// ContainerConfig describes the container created for a scenario.
type ContainerConfig struct {
	Type        string   `yaml:"type,omitempty"`
	ObjectClass string   `yaml:"object_class,omitempty"`
	Properties  []string `yaml:"properties,omitempty"`
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	TextFile string `yaml:"textfile,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
}

// UploadConfig configures report upload to an object store bucket.
type UploadConfig struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// Harness is the harness configuration.
type Harness struct {
	Name        string            `yaml:"name"`
	Servers     HostList          `yaml:"servers"`
	Clients     HostList          `yaml:"clients,omitempty"`
	Local       bool              `yaml:"local,omitempty"`
	SSH         remote.SSHConfig  `yaml:"ssh,omitempty"`
	Dmg         dmg.Config        `yaml:"dmg,omitempty"`
	CacheDir    string            `yaml:"cache_dir,omitempty"`
	LockDir     string            `yaml:"lock_dir,omitempty"`
	ReportDir   string            `yaml:"report_dir,omitempty"`
	LogFile     string            `yaml:"log_file,omitempty"`
	LogLevel    logging.LogLevel  `yaml:"log_level,omitempty"`
	LogJSON     bool              `yaml:"log_json,omitempty"`
	Capacity    CapacityConfig    `yaml:"capacity,omitempty"`
	Workload    WorkloadConfig    `yaml:"workload,omitempty"`
	Spec        workload.Spec     `yaml:"spec,omitempty"`
	Groups      []*workload.Group `yaml:"groups,omitempty"`
	Faults      faultinject.Plan  `yaml:"faults,omitempty"`
	SettleDelay time.Duration     `yaml:"settle_delay,omitempty"`
	Pool        PoolConfig        `yaml:"pool,omitempty"`
	Container   ContainerConfig   `yaml:"container,omitempty"`
	Metrics     MetricsConfig     `yaml:"metrics,omitempty"`
	Upload      UploadConfig      `yaml:"upload,omitempty"`
	// Scenarios holds per-scenario parameters keyed by scenario name.
	Scenarios map[string]map[string]string `yaml:"scenarios,omitempty"`

	Path string `yaml:"-"`
}

// DefaultHarness returns a configuration populated with defaults.
func DefaultHarness() *Harness {
	return &Harness{
		Name:      "dharness",
		Dmg:       dmg.Config{DmgPath: "dmg", DaosPath: "daos"},
		CacheDir:  defaultCacheDir,
		ReportDir: defaultReportDir,
		LogLevel:  logging.LogLevelInfo,
		Capacity: CapacityConfig{
			Source: "dmg",
			Margin: capacity.DefaultMargin,
		},
		Workload: WorkloadConfig{
			ScmTransferSize:  workload.DefaultScmTransferSize,
			NvmeTransferSize: workload.DefaultNvmeTransferSize,
			TestFile:         workload.DefaultTestFile,
			DfuseMount:       workload.DefaultDfuseMount,
		},
		Spec: workload.Spec{
			Operation:   workload.OpWrite,
			Tier:        workload.TierNVMe,
			FillPercent: defaultPercent,
			ObjectClass: "SX",
			Processes:   1,
			Timeout:     defaultTimeout,
		},
		Container:   ContainerConfig{Type: "POSIX"},
		SettleDelay: defaultSettle,
		Path:        DefaultConfigPath,
	}
}

// Load reads the serialized configuration from disk.
func (cfg *Harness) Load() error {
	if cfg.Path == "" {
		return FaultConfigNoPath
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return errors.WithMessage(err, "reading file")
	}
	return cfg.Parse(data)
}

// Parse decodes YAML configuration over the current values.
func (cfg *Harness) Parse(data []byte) error {
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return errors.WithMessagef(err, "parse of %q failed; config contains invalid parameters",
			cfg.Path)
	}
	return nil
}

// SetPath sets the configuration file path, relative paths being resolved
// against the working directory.
func (cfg *Harness) SetPath(inPath string) error {
	if inPath == "" {
		return nil
	}
	abs, err := filepath.Abs(inPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		return err
	}
	cfg.Path = abs
	return nil
}

// SaveToFile serializes the configuration to the specified file.
func (cfg *Harness) SaveToFile(filename string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// Validate checks the configuration and expands worker group host ranges.
func (cfg *Harness) Validate(log logging.Logger) error {
	if len(cfg.Servers) == 0 {
		return FaultConfigNoServers
	}
	if cfg.Capacity.Margin <= 0 || cfg.Capacity.Margin > 1 {
		return FaultConfigBadMargin(cfg.Capacity.Margin)
	}
	switch cfg.Capacity.Source {
	case "dmg":
	case "lsblk":
		if len(cfg.Capacity.Engines) == 0 {
			return FaultConfigInvalid("lsblk capacity source requires 'capacity.engines'")
		}
	default:
		return FaultConfigInvalid(fmt.Sprintf("unknown capacity source %q", cfg.Capacity.Source))
	}
	if err := cfg.Faults.Validate(); err != nil {
		return FaultConfigBadFaultPlan(err)
	}
	if cfg.Faults.Nodes > len(cfg.Servers) {
		return FaultConfigBadFaultPlan(errors.Errorf("%d nodes requested, %d servers configured",
			cfg.Faults.Nodes, len(cfg.Servers)))
	}
	if cfg.SettleDelay < 0 {
		return FaultConfigInvalid("settle_delay must not be negative")
	}

	for i, g := range cfg.Groups {
		hosts, err := hostlist.ExpandAll(g.Hosts)
		if err != nil {
			return FaultConfigBadHostList(fmt.Sprintf("groups[%d].hosts", i), err)
		}
		if len(hosts) == 0 {
			return FaultConfigInvalid(fmt.Sprintf("worker group %d has no hosts", i))
		}
		g.Hosts = hosts
		if g.Name == "" {
			g.Name = fmt.Sprintf("group%d", i)
		}
	}
	if len(cfg.Groups) == 0 && len(cfg.Clients) > 0 {
		log.Debugf("no worker groups configured, using all %d clients", len(cfg.Clients))
		cfg.Groups = []*workload.Group{{Name: "clients", Hosts: append([]string{}, cfg.Clients...)}}
	}

	return nil
}

// ScenarioParam returns a per-scenario parameter, or def if unset.
func (cfg *Harness) ScenarioParam(scenario, key, def string) string {
	if v, found := cfg.Scenarios[scenario][key]; found && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Summary returns a short description of the configured cluster.
func (cfg *Harness) Summary() string {
	return fmt.Sprintf("%s: servers=%s clients=%s", cfg.Name, cfg.Servers, cfg.Clients)
}
