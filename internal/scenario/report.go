package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Render writes rows to w in the given format.
func Render(w io.Writer, rows []Row, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatTable, "":
		return renderTable(w, rows)
	default:
		return fmt.Errorf("unknown output format %q (use table, json or yaml)", format)
	}
}

func renderTable(w io.Writer, rows []Row) error {
	table := tablewriter.NewWriter(w)
	table.Header("Scenario", "Mode", "Result", "Value / Error", "Catch", "Finally", "Suppressed", "Sink")

	for _, r := range rows {
		detail := r.Value
		if detail == "" {
			detail = r.Message
		}
		sinkCol := "-"
		switch {
		case r.Captured:
			sinkCol = "captured"
		case r.Handled:
			sinkCol = "handled"
		}
		if err := table.Append(
			r.Name,
			r.Mode,
			r.Result,
			detail,
			strconv.Itoa(r.Catches),
			strconv.Itoa(r.Finals),
			strconv.Itoa(r.Suppressed),
			sinkCol,
		); err != nil {
			return err
		}
	}
	return table.Render()
}
