//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package report writes harness results as JUnit XML and publishes them.
package report

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
)

type (
	// TestSuites is the root element of a JUnit results file.
	TestSuites struct {
		XMLName    xml.Name    `xml:"testsuites"`
		TestSuites []TestSuite `xml:"testsuite"`
	}

	// TestSuite groups the cases of one harness run.
	TestSuite struct {
		XMLName    xml.Name   `xml:"testsuite"`
		Name       string     `xml:"name,attr"`
		Timestamp  string     `xml:"timestamp,attr,omitempty"`
		Time       float32    `xml:"time,attr,omitempty"`
		Tests      int        `xml:"tests,attr"`
		Failures   int        `xml:"failures,attr"`
		Errors     int        `xml:"errors,attr"`
		Skipped    int        `xml:"skipped,attr"`
		Properties []Property `xml:"properties>property,omitempty"`
		TestCases  []TestCase `xml:"testcase"`
	}

	// Property is a name/value pair attached to a suite.
	Property struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	}

	// TestCase is one scenario outcome.
	TestCase struct {
		XMLName   xml.Name `xml:"testcase"`
		ClassName string   `xml:"classname,attr,omitempty"`
		Name      string   `xml:"name,attr"`
		Time      float32  `xml:"time,attr"`
		Failure   *Failure `xml:"failure,omitempty"`
		Skipped   *Skipped `xml:"skipped,omitempty"`
		SystemOut string   `xml:"system-out,omitempty"`
	}

	// Failure describes a failed case.
	Failure struct {
		XMLName xml.Name `xml:"failure"`
		Message string   `xml:"message,attr,omitempty"`
		Value   string   `xml:",chardata"`
	}

	// Skipped marks a case that did not run.
	Skipped struct {
		Message string `xml:"message,attr,omitempty"`
	}
)

// Case is the input for one test case.
type Case struct {
	Name    string
	Passed  bool
	Skipped bool
	Message string
	Detail  string
	Output  string
	Elapsed time.Duration
}

// NewSuite builds a suite from case outcomes.
func NewSuite(name, class string, start time.Time, props map[string]string, cases ...Case) TestSuite {
	ts := TestSuite{
		Name:      name,
		Timestamp: start.UTC().Format("2006-01-02T15:04:05"),
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ts.Properties = append(ts.Properties, Property{Name: k, Value: props[k]})
	}

	for _, c := range cases {
		tc := TestCase{
			ClassName: class,
			Name:      c.Name,
			Time:      float32(c.Elapsed.Seconds()),
			SystemOut: c.Output,
		}
		switch {
		case c.Skipped:
			tc.Skipped = &Skipped{Message: c.Message}
			ts.Skipped++
		case !c.Passed:
			tc.Failure = &Failure{Message: c.Message, Value: c.Detail}
			ts.Failures++
		}
		ts.Time += tc.Time
		ts.TestCases = append(ts.TestCases, tc)
	}
	ts.Tests = len(ts.TestCases)
	return ts
}

// Failed returns true if any suite has failures or errors.
func (ts *TestSuites) Failed() bool {
	for _, s := range ts.TestSuites {
		if s.Failures > 0 || s.Errors > 0 {
			return true
		}
	}
	return false
}

// ReadFile reads a JUnit results file.
func ReadFile(path string) (*TestSuites, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read results file %q", path)
	}

	testSuites := &TestSuites{}
	if err := xml.Unmarshal(data, testSuites); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal results file %q", path)
	}
	return testSuites, nil
}

// ReadDir reads and merges every .xml results file in dir, in name order.
func ReadDir(dir string) (*TestSuites, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read results from directory %q", dir)
	}

	all := &TestSuites{}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".xml" {
			continue
		}

		ts, err := ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}
		all.TestSuites = append(all.TestSuites, ts.TestSuites...)
	}
	return all, nil
}

// WriteFile writes the suites to path, creating its directory.
func (ts *TestSuites) WriteFile(path string) error {
	data, err := xml.MarshalIndent(ts, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results data to XML")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return errors.Wrapf(err, "failed to write results data to file %q", path)
	}
	return nil
}

// Coalesce merges the results files in dir into a single file at out.
func Coalesce(dir, out string) (*TestSuites, error) {
	ts, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if err := ts.WriteFile(out); err != nil {
		return nil, err
	}
	return ts, nil
}
