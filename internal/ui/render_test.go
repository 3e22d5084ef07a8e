package ui

import (
	"strings"
	"testing"

	"github.com/AskInward/Voice-Calc/internal/calc"
)

func TestRender_ContainsTotalAndTranscript(t *testing.T) {
	r := NewRenderer()
	out := r.Render(Snapshot{
		State:   "connected",
		Total:   42.5,
		Hearing: "add fifty",
		History: []calc.Entry{
			{Operation: calc.Operation{Op: calc.OpAdd, Value: 50}, Total: 50},
			{Operation: calc.Operation{Op: calc.OpSubtract, Value: 7.5}, Total: 42.5},
		},
		Stats: calc.Summarize([]calc.Entry{
			{Operation: calc.Operation{Op: calc.OpAdd, Value: 50}, Total: 50},
			{Operation: calc.Operation{Op: calc.OpSubtract, Value: 7.5}, Total: 42.5},
		}),
	})

	for _, want := range []string{
		"total: 42.5",
		"hearing: add fifty",
		"ADD",
		"SUBTRACT",
		"[connected]",
		"n=2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("rendered view missing %q:\n%s", want, out)
		}
	}
}

func TestRender_EmptyHistory(t *testing.T) {
	r := NewRenderer()
	out := r.Render(Snapshot{State: "idle", Total: 0})
	if !strings.Contains(out, "total: 0") {
		t.Fatalf("rendered view missing zero total:\n%s", out)
	}
	if strings.Contains(out, "hearing:") {
		t.Fatalf("empty transcript should not render a hearing line:\n%s", out)
	}
}

func TestRender_HistoryTailIsBounded(t *testing.T) {
	var history []calc.Entry
	for i := 0; i < historyTail+4; i++ {
		history = append(history, calc.Entry{
			Operation: calc.Operation{Op: calc.OpAdd, Value: 1},
			Total:     float64(i + 1),
		})
	}
	out := NewRenderer().Render(Snapshot{State: "connected", History: history})
	if got := strings.Count(out, "ADD"); got != historyTail {
		t.Fatalf("history tail shows %d rows, want %d", got, historyTail)
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil); got != "" {
		t.Fatalf("empty series = %q", got)
	}
	if got := Sparkline([]float64{5, 5, 5}); got != "▁▁▁" {
		t.Fatalf("flat series = %q", got)
	}
	got := Sparkline([]float64{0, 50, 100})
	runes := []rune(got)
	if len(runes) != 3 {
		t.Fatalf("sparkline length = %d", len(runes))
	}
	if runes[0] != '▁' || runes[2] != '█' {
		t.Fatalf("sparkline endpoints = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:     "0",
		42.5:  "42.5",
		50:    "50",
		-7.25: "-7.25",
	}
	for in, want := range cases {
		if got := formatNumber(in); got != want {
			t.Fatalf("formatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}
