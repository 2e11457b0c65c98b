//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package logging_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/daos-stack/dharness/logging"
)

func TestLogging_LevelFiltering(t *testing.T) {
	for name, tc := range map[string]struct {
		level     logging.LogLevel
		expShown  []string
		expHidden []string
	}{
		"error only": {
			level:     logging.LogLevelError,
			expShown:  []string{"an error"},
			expHidden: []string{"a notice", "some info", "a debug", "a trace"},
		},
		"info": {
			level:     logging.LogLevelInfo,
			expShown:  []string{"an error", "a notice", "some info"},
			expHidden: []string{"a debug", "a trace"},
		},
		"trace": {
			level:    logging.LogLevelTrace,
			expShown: []string{"an error", "a notice", "some info", "a debug", "a trace"},
		},
		"disabled": {
			level:     logging.LogLevelDisabled,
			expHidden: []string{"an error", "some info"},
		},
	} {
		t.Run(name, func(t *testing.T) {
			log, buf := logging.NewTestLogger(t.Name())
			log.SetLevel(tc.level)

			log.Error("an error")
			log.Notice("a notice")
			log.Infof("some %s", "info")
			log.Debug("a debug")
			log.Tracef("a %s", "trace")

			out := buf.String()
			for _, s := range tc.expShown {
				if !strings.Contains(out, s) {
					t.Errorf("expected %q in output:\n%s", s, out)
				}
			}
			for _, s := range tc.expHidden {
				if strings.Contains(out, s) {
					t.Errorf("unexpected %q in output:\n%s", s, out)
				}
			}
		})
	}
}

func TestLogging_DebugSource(t *testing.T) {
	log, buf := logging.NewTestLogger("src")
	log.Debugf("where am i")

	if !strings.Contains(buf.String(), "logging_test.go:") {
		t.Fatalf("expected caller file in debug output, got %q", buf.String())
	}
}

func TestLogging_JSONOutput(t *testing.T) {
	log, buf := logging.NewTestLogger("json")
	log.WithJSONOutput()

	log.Infof("fleet capacity %d", 96)

	var entry map[string]string
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not JSON: %s (%q)", err, buf.String())
	}
	if entry["level"] != "INFO" {
		t.Errorf("unexpected level %q", entry["level"])
	}
	if entry["message"] != "fleet capacity 96" {
		t.Errorf("unexpected message %q", entry["message"])
	}
	if entry["extra"] != "json" {
		t.Errorf("unexpected extra %q", entry["extra"])
	}
}

func TestLogging_SetString(t *testing.T) {
	var level logging.LogLevel
	if err := level.SetString("debug"); err != nil {
		t.Fatal(err)
	}
	if level != logging.LogLevelDebug {
		t.Fatalf("expected DEBUG, got %s", level)
	}
	if err := level.SetString("loud"); err == nil {
		t.Fatal("expected error for bogus level")
	}
}

func TestLogging_Context(t *testing.T) {
	log, buf := logging.NewTestLogger("ctx")

	ctx := logging.WithRun(context.Background(), log, "run1")
	logging.FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Fatalf("message not logged via context logger: %q", buf.String())
	}
	if got := logging.RunID(ctx); got != "run1" {
		t.Fatalf("expected run1, got %q", got)
	}

	inner := logging.WithRun(ctx, nil, "run2")
	if got := logging.RunID(inner); got != "run2" {
		t.Fatalf("expected inner scope to replace outer, got %q", got)
	}
	logging.FromContext(inner).Error("dropped by nil logger")
	if strings.Contains(buf.String(), "dropped") {
		t.Fatalf("nil logger scope should discard: %q", buf.String())
	}

	// a context without a run scope yields a usable no-op logger
	logging.FromContext(context.Background()).Error("dropped")
	if got := logging.RunID(context.Background()); got != "" {
		t.Fatalf("expected no run ID, got %q", got)
	}
}
