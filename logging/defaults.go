//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging

import (
	"io"
	"os"
)

const DefaultLogLevel = LogLevelInfo

// NewCommandLineLogger returns a logger configured
// to send non-error output to stdout and error
// output to stderr. The output format is suitable
// for command line utilities which don't want output
// to include timestamps and filenames.
func NewCommandLineLogger() *LeveledLogger {
	ll := newLeveledLogger(DefaultLogLevel)
	for level := LogLevelNotice; level <= LogLevelTrace; level++ {
		ll.addSink(level, &sink{dest: os.Stdout, style: styleCommandLine})
	}
	ll.addSink(LogLevelError, &sink{dest: os.Stderr, style: styleCommandLine})
	return ll
}

// NewStdoutLogger returns a logger configured
// to send all output to stdout (suitable for
// long-running harness jobs under CI).
func NewStdoutLogger(prefix string) *LeveledLogger {
	return NewCombinedLogger(prefix, os.Stdout)
}

// NewCombinedLogger returns a logger configured
// to send all output to the supplied io.Writer.
func NewCombinedLogger(prefix string, output io.Writer) *LeveledLogger {
	ll := newLeveledLogger(DefaultLogLevel)
	ll.AddCombinedOutput(prefix, output)
	return ll
}

// NewTestLogger returns a logger and a *LogBuffer,
// with the logger configured to send all output into
// the buffer. The logger's level is set to DEBUG by default.
func NewTestLogger(prefix string) (*LeveledLogger, *LogBuffer) {
	var buf LogBuffer
	return NewCombinedLogger(prefix, &buf).
		WithLogLevel(LogLevelDebug), &buf
}
