package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AskInward/Voice-Calc/internal/calc"
)

const historyTail = 6

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// Snapshot is everything the terminal view needs for one redraw.
type Snapshot struct {
	State   string
	Total   float64
	Hearing string
	History []calc.Entry
	Stats   calc.Stats
}

// Renderer draws the running total, the live transcript line and a tail of
// recent operations as one block of styled terminal text.
type Renderer struct {
	title   lipgloss.Style
	total   lipgloss.Style
	state   lipgloss.Style
	hearing lipgloss.Style
	entry   lipgloss.Style
	stats   lipgloss.Style
	frame   lipgloss.Style
}

func NewRenderer() *Renderer {
	return &Renderer{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		total:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		state:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		hearing: lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245")),
		entry:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		stats:   lipgloss.NewStyle().Foreground(lipgloss.Color("109")),
		frame:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2),
	}
}

// Render lays the snapshot out as a bordered block ready to print.
func (r *Renderer) Render(s Snapshot) string {
	var b strings.Builder

	b.WriteString(r.title.Render("voice calc"))
	b.WriteString("  ")
	b.WriteString(r.state.Render("[" + s.State + "]"))
	b.WriteString("\n\n")

	b.WriteString(r.total.Render(fmt.Sprintf("total: %s", formatNumber(s.Total))))
	b.WriteString("\n")

	if s.Hearing != "" {
		b.WriteString(r.hearing.Render("hearing: " + s.Hearing))
		b.WriteString("\n")
	}

	if len(s.History) > 0 {
		b.WriteString("\n")
		tail := s.History
		if len(tail) > historyTail {
			tail = tail[len(tail)-historyTail:]
		}
		for _, e := range tail {
			b.WriteString(r.entry.Render(formatEntry(e)))
			b.WriteString("\n")
		}
		b.WriteString(r.stats.Render(Sparkline(totals(s.History))))
		b.WriteString("\n")
	}

	if s.Stats.Count > 0 {
		b.WriteString(r.stats.Render(fmt.Sprintf(
			"n=%d sum=%s mean=%s min=%s max=%s",
			s.Stats.Count,
			formatNumber(s.Stats.Sum),
			formatNumber(s.Stats.Mean),
			formatNumber(s.Stats.Min),
			formatNumber(s.Stats.Max),
		)))
		b.WriteString("\n")
	}

	return r.frame.Render(strings.TrimRight(b.String(), "\n"))
}

func formatEntry(e calc.Entry) string {
	if e.Operation.Op == calc.OpReset {
		return fmt.Sprintf("%-9s          = %s", e.Operation.Op, formatNumber(e.Total))
	}
	return fmt.Sprintf("%-9s %8s = %s",
		e.Operation.Op, formatNumber(e.Operation.Value), formatNumber(e.Total))
}

func totals(history []calc.Entry) []float64 {
	out := make([]float64, len(history))
	for i, e := range history {
		out[i] = e.Total
	}
	return out
}

func formatNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" || s == "" {
		s = "0"
	}
	return s
}

// Sparkline renders a series of values as one row of block characters scaled
// between the series' min and max.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	var b strings.Builder
	for _, v := range values {
		idx := 0
		if span > 0 {
			idx = int((v - lo) / span * float64(len(sparkRunes)-1))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
