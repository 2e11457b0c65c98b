//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package build provides an importable repository of variables set at build time.
package build

var (
	// ConfigDir should be set via linker flag using the value of CONF_DIR.
	ConfigDir string = "/etc/daos"
	// HarnessVersion should be set via linker flag using the value of DAOS_VERSION.
	HarnessVersion string = "unset"
	// HarnessName defines a consistent name for the harness binary.
	HarnessName = "dharness"

	// DefaultConfigFile is the harness config file name looked up in ConfigDir.
	DefaultConfigFile = "dharness.yml"
	// DefaultCacheDir is the shared location used for probe caches and device locks.
	DefaultCacheDir = "/var/tmp/dharness"
	// DefaultSystemName defines the default DAOS system name.
	DefaultSystemName = "daos_server"
)
