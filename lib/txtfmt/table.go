//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package txtfmt renders harness results as aligned text tables.
package txtfmt

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// TableRow is a map of column title to value.
type TableRow map[string]string

// TableFormatter writes rows of labeled columns.
type TableFormatter struct {
	titles []string
	writer *tabwriter.Writer
	out    bytes.Buffer
}

// InitWriter sets up the tabwriter to use the supplied io.Writer
// instead of the internal buffer.
func (t *TableFormatter) InitWriter(w io.Writer) {
	t.writer = tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
}

func (t *TableFormatter) formatHeader() {
	for _, title := range t.titles {
		fmt.Fprintf(t.writer, "%s\t", title)
	}
	fmt.Fprint(t.writer, "\n")
	for _, title := range t.titles {
		fmt.Fprintf(t.writer, "%s\t", strings.Repeat("-", len(title)))
	}
	fmt.Fprint(t.writer, "\n")
}

// Format generates an output string for the set of table rows provided,
// filling only the titled columns in order. Missing values print as "None".
func (t *TableFormatter) Format(table []TableRow) string {
	if len(t.titles) == 0 {
		return ""
	}

	t.formatHeader()
	for _, row := range table {
		for _, title := range t.titles {
			value, ok := row[title]
			if !ok {
				value = "None"
			}
			fmt.Fprintf(t.writer, "%s\t", value)
		}
		fmt.Fprint(t.writer, "\n")
	}

	t.writer.Flush()
	return t.out.String()
}

// NewTableFormatter creates a TableFormatter for the supplied columns.
func NewTableFormatter(columnTitles ...string) *TableFormatter {
	f := &TableFormatter{titles: columnTitles}
	f.InitWriter(&f.out)
	return f
}

// FormatEntity renders a titled list of attribute/value pairs in the
// order supplied.
func FormatEntity(title string, attrs [][2]string) string {
	var out bytes.Buffer
	if title != "" {
		fmt.Fprintf(&out, "%s\n%s\n", title, strings.Repeat("-", len(title)))
	}

	w := tabwriter.NewWriter(&out, 0, 0, 1, ' ', 0)
	for _, kv := range attrs {
		fmt.Fprintf(w, "  %s\t: %s\n", kv[0], kv[1])
	}
	w.Flush()

	return out.String()
}
