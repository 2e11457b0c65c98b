//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package txtfmt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTxtfmt_Table(t *testing.T) {
	for name, tc := range map[string]struct {
		titles []string
		rows   []TableRow
		expOut string
	}{
		"no titles": {
			rows: []TableRow{{"a": "b"}},
		},
		"missing value": {
			titles: []string{"Host", "Status"},
			rows: []TableRow{
				{"Host": "wolf-1", "Status": "PASS"},
				{"Host": "wolf-22"},
			},
			expOut: `
Host    Status 
----    ------ 
wolf-1  PASS   
wolf-22 None   
`,
		},
	} {
		t.Run(name, func(t *testing.T) {
			got := NewTableFormatter(tc.titles...).Format(tc.rows)
			if diff := cmp.Diff(strings.TrimLeft(tc.expOut, "\n"), got); diff != "" {
				t.Fatalf("unexpected output (-want, +got):\n%s\n", diff)
			}
		})
	}
}

func TestTxtfmt_Entity(t *testing.T) {
	got := FormatEntity("Fleet", [][2]string{{"SCM", "96 B"}, {"NVMe total", "1 TB"}})
	exp := `Fleet
-----
  SCM        : 96 B
  NVMe total : 1 TB
`
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("unexpected output (-want, +got):\n%s\n", diff)
	}
}
