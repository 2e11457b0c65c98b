//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package workload

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const iorSummaryMarker = "Summary of all tests:"

// IorMetric is one row of the IOR summary table.
type IorMetric struct {
	Operation string            `json:"operation"`
	MaxMiB    float64           `json:"max_mib"`
	MinMiB    float64           `json:"min_mib"`
	MeanMiB   float64           `json:"mean_mib"`
	MeanOps   float64           `json:"mean_ops"`
	MeanSecs  float64           `json:"mean_secs"`
	Tasks     int               `json:"tasks"`
	BlockSize uint64            `json:"block_size"`
	XferSize  uint64            `json:"xfer_size"`
	API       string            `json:"api"`
	Fields    map[string]string `json:"-"`
}

// ParseIorMetrics extracts the summary table from IOR output. Columns are
// located by header name. Output without a summary yields no metrics.
func ParseIorMetrics(output string) ([]*IorMetric, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var header []string
	inSummary := false
	var metrics []*IorMetric
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, iorSummaryMarker):
			inSummary = true
			header = nil
			continue
		case !inSummary:
			continue
		case line == "" || strings.HasPrefix(line, "Finished"):
			if header != nil {
				inSummary = false
			}
			continue
		}

		fields := strings.Fields(line)
		if header == nil {
			header = fields
			continue
		}
		if len(fields) != len(header) {
			return nil, errors.Errorf("ior summary row has %d fields, header has %d: %q",
				len(fields), len(header), line)
		}

		m := &IorMetric{Fields: make(map[string]string, len(header))}
		for i, h := range header {
			m.Fields[h] = fields[i]
		}
		if err := m.decode(); err != nil {
			return nil, errors.Wrapf(err, "ior summary row %q", line)
		}
		metrics = append(metrics, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return metrics, nil
}

func (m *IorMetric) decode() error {
	m.Operation = m.Fields["Operation"]
	m.API = m.Fields["API"]

	floats := map[string]*float64{
		"Max(MiB)":  &m.MaxMiB,
		"Min(MiB)":  &m.MinMiB,
		"Mean(MiB)": &m.MeanMiB,
		"Mean(OPs)": &m.MeanOps,
		"Mean(s)":   &m.MeanSecs,
	}
	for key, dst := range floats {
		if v, found := m.Fields[key]; found {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return errors.Wrapf(err, "column %s", key)
			}
			*dst = f
		}
	}

	uints := map[string]*uint64{
		"blksiz": &m.BlockSize,
		"xsize":  &m.XferSize,
	}
	for key, dst := range uints {
		if v, found := m.Fields[key]; found {
			u, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "column %s", key)
			}
			*dst = u
		}
	}

	if v, found := m.Fields["#Tasks"]; found {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "column #Tasks")
		}
		m.Tasks = n
	}
	return nil
}

// IorWarnings returns the warning lines in IOR output.
func IorWarnings(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "WARNING") {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}

// IorErrors returns the error lines in IOR output.
func IorErrors(output string) []string {
	var out []string
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "ERROR") {
			out = append(out, strings.TrimSpace(line))
		}
	}
	return out
}
