package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// field is one row of human-readable output.
type field struct {
	name  string
	value any
}

// printResult writes v as indented JSON, or rows as an aligned table.
func printResult(w io.Writer, jsonOutput bool, v any, rows []field) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s:\t%v\n", r.name, r.value)
	}
	return tw.Flush()
}
