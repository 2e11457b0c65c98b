//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package workload launches IOR worker groups against a pool and reports
// one result per group.
package workload

import (
	"encoding/json"
	"math/bits"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/daos-stack/dharness/lib/dmg"
)

// Operation selects what the workload does.
type Operation string

const (
	// OpWrite fills the pool to a target percentage, or writes a fixed
	// block size when no fill percentage is set.
	OpWrite Operation = "Write"
	// OpRead reads back and verifies data written by an earlier OpWrite.
	OpRead Operation = "Read"
	// OpWriteRead writes then reads with a fixed block size.
	OpWriteRead Operation = "WriteRead"
)

// ParseOperation parses an operation name case-insensitively.
func ParseOperation(in string) (Operation, error) {
	for _, op := range []Operation{OpWrite, OpRead, OpWriteRead} {
		if strings.EqualFold(in, string(op)) {
			return op, nil
		}
	}
	return "", errors.Errorf("unknown operation %q", in)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (op *Operation) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseOperation(s)
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// Tier selects the pool storage tier to fill.
type Tier string

const (
	// TierSCM is the byte-addressable tier.
	TierSCM Tier = "SCM"
	// TierNVMe is the block-addressable tier.
	TierNVMe Tier = "NVMe"
)

// ParseTier parses a tier name case-insensitively.
func ParseTier(in string) (Tier, error) {
	for _, t := range []Tier{TierSCM, TierNVMe} {
		if strings.EqualFold(in, string(t)) {
			return t, nil
		}
	}
	return "", errors.Errorf("unknown storage tier %q", in)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Tier) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MediaType returns the pool query media type of the tier.
func (t Tier) MediaType() dmg.MediaType {
	if t == TierSCM {
		return dmg.MediaTypeScm
	}
	return dmg.MediaTypeNvme
}

const (
	// DefaultWriteFlags writes and keeps the files for a later read.
	DefaultWriteFlags = "-w -F -k -G 1"
	// DefaultReadFlags reads back and verifies data written with DefaultWriteFlags.
	DefaultReadFlags = "-r -R -F -k -G 1"
	// DefaultWriteReadFlags writes, reads and verifies in one run.
	DefaultWriteReadFlags = "-v -W -w -r -R"
)

// Spec describes one workload run. It is not modified once a run starts.
type Spec struct {
	Operation     Operation     `yaml:"operation" json:"operation"`
	Tier          Tier          `yaml:"tier" json:"tier"`
	FillPercent   uint          `yaml:"fill_percent" json:"fill_percent"`
	TransferSize  uint64        `yaml:"transfer_size,omitempty" json:"transfer_size"`
	BlockSize     uint64        `yaml:"block_size,omitempty" json:"block_size"`
	ObjectClass   string        `yaml:"object_class" json:"object_class"`
	Processes     int           `yaml:"processes" json:"processes"`
	API           string        `yaml:"api,omitempty" json:"api"`
	Flags         string        `yaml:"flags,omitempty" json:"flags"`
	ReadFlags     string        `yaml:"read_flags,omitempty" json:"read_flags"`
	ChunkSize     uint64        `yaml:"chunk_size,omitempty" json:"chunk_size,omitempty"`
	SegmentCount  int           `yaml:"segment_count,omitempty" json:"segment_count,omitempty"`
	FailOnWarning bool          `yaml:"fail_on_warning,omitempty" json:"fail_on_warning"`
	Timeout       time.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

// Validate checks the spec for internal consistency.
func (s *Spec) Validate() error {
	switch s.Operation {
	case OpWrite:
		if s.FillPercent > 100 || (s.FillPercent == 0 && s.BlockSize == 0) {
			return FaultBadSpec("fill_percent must be in 1..100 unless a block size is set")
		}
	case OpRead, OpWriteRead:
		if s.BlockSize == 0 {
			return FaultBadSpec(string(s.Operation) + " requires a block size")
		}
	default:
		return FaultBadSpec("unknown operation " + strconv.Quote(string(s.Operation)))
	}
	if s.Tier != TierSCM && s.Tier != TierNVMe {
		return FaultBadSpec("unknown tier " + strconv.Quote(string(s.Tier)))
	}
	if s.Processes <= 0 {
		return FaultBadSpec("processes must be positive")
	}
	if s.Timeout <= 0 {
		return FaultBadSpec("timeout must be positive")
	}
	return nil
}

// FlagsFor returns the IOR flag set for the operation.
func (s *Spec) FlagsFor() string {
	switch s.Operation {
	case OpRead:
		if s.ReadFlags != "" {
			return s.ReadFlags
		}
		return DefaultReadFlags
	case OpWriteRead:
		return DefaultWriteReadFlags
	default:
		if s.Flags != "" {
			return s.Flags
		}
		return DefaultWriteFlags
	}
}

var (
	replicaRe = regexp.MustCompile(`^RP_(\d+)G`)
	ecRe      = regexp.MustCompile(`^EC_(\d+)P\d+G`)
)

// ReplicaFactor derives the divisor applied to per-worker data from the
// object class: RP_<n>G* gives n, EC_<k>P<p>G* gives k, anything else 1.
func ReplicaFactor(oclass string) int {
	oclass = strings.ToUpper(strings.TrimSpace(oclass))
	for _, re := range []*regexp.Regexp{replicaRe, ecRe} {
		if m := re.FindStringSubmatch(oclass); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

// BlockSize computes the per-worker IOR block size that fills percent of
// avail across workers, divided by the replica factor and quantized down to
// a multiple of xfer. The remainder is left unfilled.
func BlockSize(avail uint64, percent uint, workers, factor int, xfer uint64) (uint64, error) {
	if percent == 0 || percent > 100 {
		return 0, FaultBadSpec("fill percent must be in 1..100")
	}
	if workers <= 0 || factor <= 0 || xfer == 0 {
		return 0, FaultBadSpec("workers, replica factor and transfer size must be positive")
	}

	hi, lo := bits.Mul64(avail, uint64(percent))
	perWorker, _ := bits.Div64(hi, lo, 100)
	perWorker /= uint64(workers)
	perWorker /= uint64(factor)

	block := (perWorker / xfer) * xfer
	if block == 0 {
		return 0, FaultBadBlockSize(avail, percent, workers, factor, xfer)
	}
	return block, nil
}

// SplitProcesses returns the share of np for a group of groupClients hosts
// out of totalClients, computed as (np / totalClients) * groupClients.
func SplitProcesses(np, totalClients, groupClients int) int {
	if totalClients <= 0 {
		return 0
	}
	return (np / totalClients) * groupClients
}

// Status is the terminal state of a worker group.
type Status string

const (
	// StatusPass indicates that the group completed successfully.
	StatusPass Status = "PASS"
	// StatusFail indicates that the group failed.
	StatusFail Status = "FAIL"
)

// Group is a set of client hosts running one IOR job. Env is passed to the
// job on top of the launcher environment.
type Group struct {
	Name         string            `yaml:"name" json:"name"`
	Hosts        []string          `yaml:"hosts" json:"hosts"`
	Processes    int               `yaml:"processes,omitempty" json:"processes"`
	InterceptLib string            `yaml:"intercept_lib,omitempty" json:"intercept_lib,omitempty"`
	TestFile     string            `yaml:"test_file,omitempty" json:"test_file,omitempty"`
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// Result is the single terminal result of one worker group.
type Result struct {
	Group     string        `json:"group"`
	Status    Status        `json:"status"`
	BlockSize uint64        `json:"block_size"`
	Metrics   []*IorMetric  `json:"metrics,omitempty"`
	Err       error         `json:"-"`
	Command   string        `json:"command,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Failed indicates whether the result is a failure.
func (r *Result) Failed() bool {
	return r == nil || r.Status != StatusPass
}

// MarshalJSON includes the error text.
func (r *Result) MarshalJSON() ([]byte, error) {
	type toJSON Result
	var errStr string
	if r.Err != nil {
		errStr = r.Err.Error()
	}
	return json.Marshal(&struct {
		*toJSON
		Error string `json:"error,omitempty"`
	}{
		toJSON: (*toJSON)(r),
		Error:  errStr,
	})
}

func failResult(group string, err error) *Result {
	return &Result{Group: group, Status: StatusFail, Err: err}
}
