// Package report renders collector output for people and machines.
package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/locktivity/epack-collector-akamai/internal/collector"
)

// Legend lines printed below the table.
const (
	Legend         = "AG = Attack Group, RC = Rate Control, CR = Client Reputation"
	SentinelLegend = "off = control not configured for the policy"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// WriteTable renders the rows as a table followed by the legend, any
// skipped configurations, findings and drift, and the elapsed time.
func WriteTable(w io.Writer, output *collector.Output) error {
	rows := make([][]string, 0, len(output.Rows))
	for _, r := range output.Rows {
		rows = append(rows, r.Cells())
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(collector.Columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	p := &printer{w: w}
	p.println(t.Render())
	p.println()
	p.println(Legend)
	p.println(SentinelLegend)

	if len(output.Skipped) > 0 {
		p.println()
		p.printf("Skipped %d configuration(s):\n", len(output.Skipped))
		for _, s := range output.Skipped {
			p.printf("  - %s (%d): %s\n", s.Name, s.ConfigID, s.Reason)
		}
	}

	if len(output.Findings) > 0 {
		p.println()
		p.printf("Findings (%d):\n", len(output.Findings))
		for _, f := range output.Findings {
			p.printf("  - #%d %s / %s [%s]: %s\n", f.RowNumber, f.ConfigName, f.PolicyName, f.Check, f.Message)
		}
	}

	if len(output.Drift) > 0 {
		p.println()
		p.printf("Changes since baseline (%d):\n", len(output.Drift))
		for _, d := range output.Drift {
			p.printf("  - %s %s\n", d.Op, d.Path)
		}
	}

	p.println()
	p.printf("Query processed in %.5f seconds.\n", output.ElapsedSeconds)
	return p.err
}

// printer keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) println(a ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintln(p.w, a...)
	}
}

func (p *printer) printf(format string, a ...any) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, a...)
	}
}
