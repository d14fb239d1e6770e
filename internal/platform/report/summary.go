package report

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Summary renders reports for a terminal.
type Summary struct {
	colors map[string]*color.Color
}

// NewSummary creates a summary renderer. With noColor set, output is plain
// text regardless of the terminal.
func NewSummary(noColor bool) *Summary {
	s := &Summary{
		colors: map[string]*color.Color{
			"title": color.New(color.FgWhite, color.Bold),
			"label": color.New(color.FgCyan),
			"good":  color.New(color.FgGreen),
			"warn":  color.New(color.FgYellow),
			"bad":   color.New(color.FgRed, color.Bold),
		},
	}
	if noColor {
		for _, c := range s.colors {
			c.DisableColor()
		}
	}
	return s
}

// Format renders r: the row counts, the removal rate and one line per pass.
func (s *Summary) Format(r Report) string {
	var b strings.Builder

	b.WriteString(s.colors["title"].Sprintf("Deduplication run %s", r.RunID))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", s.colors["label"].Sprint("source:"), r.Source)
	fmt.Fprintf(&b, "%s %d -> %d\n", s.colors["label"].Sprint("rows:"), r.InputRows, r.OutputRows)
	fmt.Fprintf(&b, "%s %s\n", s.colors["label"].Sprint("removal rate:"), s.rate(r.RemovalRate))

	if len(r.Passes) > 0 {
		b.WriteString(s.colors["label"].Sprint("passes:"))
		b.WriteString("\n")
		for _, p := range r.Passes {
			fmt.Fprintf(&b, "  %-16s candidates=%-5d removed=%d\n", p.Field, p.Candidates, p.Removed)
		}
	}
	if d := r.FinishedAt.Sub(r.StartedAt); d > 0 {
		fmt.Fprintf(&b, "%s %s\n", s.colors["label"].Sprint("duration:"), d)
	}
	return b.String()
}

// rate colors a removal rate: high rates usually point at grouping fields
// that are too coarse.
func (s *Summary) rate(v float64) string {
	text := fmt.Sprintf("%.2f", v)
	switch {
	case v >= 0.5:
		return s.colors["bad"].Sprint(text)
	case v >= 0.2:
		return s.colors["warn"].Sprint(text)
	default:
		return s.colors["good"].Sprint(text)
	}
}
