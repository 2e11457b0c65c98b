//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

type outputStyle int

const (
	styleCombined outputStyle = iota
	styleCommandLine
)

const (
	combinedLogFlags = log.LstdFlags | log.Lmicroseconds
	debugLogFlags    = log.Lmicroseconds | log.Lshortfile
	emptyLogFlags    = 0

	iso8601 = "2006-01-02T15:04:05.000000Z07:00"
)

func levelFlags(level LogLevel, style outputStyle) int {
	switch {
	case level >= LogLevelDebug:
		return debugLogFlags
	case style == styleCommandLine:
		return emptyLogFlags
	default:
		return combinedLogFlags
	}
}

func levelPrefix(level LogLevel, s *sink) string {
	if s.style == styleCommandLine {
		switch level {
		case LogLevelError:
			return "ERROR: "
		case LogLevelDebug, LogLevelTrace:
			return level.String() + " "
		default:
			return ""
		}
	}

	prefix := level.String() + " "
	if s.prefix != "" {
		prefix = s.prefix + " " + prefix
	}
	return prefix
}

func newOutputter(level LogLevel, s *sink, asJSON bool) Outputter {
	flags := levelFlags(level, s.style)
	if asJSON {
		return &JSONFormatter{
			output: s.dest,
			level:  level.String(),
			extra:  s.prefix,
			flags:  flags | log.Lmicroseconds,
		}
	}
	return log.New(s.dest, levelPrefix(level, s), flags)
}

type (
	// JSONFormatter emits JSON-formatted log output
	JSONFormatter struct {
		output io.Writer
		level  string
		extra  string
		flags  int
	}

	logStruct struct {
		Level   string `json:"level"`
		Time    string `json:"time"`
		Extra   string `json:"extra,omitempty"`
		Source  string `json:"source,omitempty"`
		Message string `json:"message"`
	}
)

// Output emulates log.Logger's Output(), but formats
// the message as a JSON-structured log entry.
func (f *JSONFormatter) Output(callDepth int, msg string) error {
	entry := logStruct{
		Time:    time.Now().Format(iso8601),
		Level:   f.level,
		Extra:   f.extra,
		Message: strings.TrimSuffix(msg, "\n"),
	}

	if f.flags&(log.Lshortfile|log.Llongfile) != 0 {
		if _, file, line, ok := runtime.Caller(callDepth); ok {
			if f.flags&log.Lshortfile != 0 {
				file = filepath.Base(file)
			}
			entry.Source = fmt.Sprintf("%s:%d", file, line)
		}
	}

	buf, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.output.Write(append(buf, '\n'))
	return err
}
