package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/locktivity/epack-collector-akamai/internal/collector"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// Write renders output in the given format.
func Write(w io.Writer, format string, output *collector.Output) error {
	switch format {
	case "", FormatTable:
		return WriteTable(w, output)
	case FormatJSON:
		return WriteJSON(w, output)
	default:
		return fmt.Errorf("unknown output format %q (want %q or %q)", format, FormatTable, FormatJSON)
	}
}

// WriteJSON writes output as indented JSON.
func WriteJSON(w io.Writer, output *collector.Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// ReadJSONFile reads a JSON report written by WriteJSON.
func ReadJSONFile(path string) (*collector.Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", path, err)
	}

	var output collector.Output
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &output, nil
}
