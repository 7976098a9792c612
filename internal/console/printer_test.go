package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/talgya/lifesim/internal/engine"
)

func TestYearReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.MaxEvents = 2
	p.Year(engine.YearResult{
		Year:            2031,
		TotalPopulation: 12345,
		AliveHumans:     12000,
		AliveAnimals:    345,
		AliveBySpecies:  map[string]int{"dog": 300, "cat": 45},
		Married:         4000,
		Widowed:         100,
		Single:          7900,
		Births:          1200,
		EventLog:        []string{"a", "b", "c", "d"},
	})

	out := buf.String()
	for _, want := range []string{
		"=== Year 2031 ===",
		"Births 1,200",
		"Population: 12,345 (humans 12,000, animals 345)",
		"7,900 single, 4,000 married, 100 widowed",
		"Animals: cat 45 dog 300",
		"  - a\n  - b\n",
		"... and 2 more",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "  - c") {
		t.Error("MaxEvents not applied")
	}
}

func TestSummaryAndExtinct(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	snap := engine.Snapshot{
		RunID:       "r1",
		State:       engine.StateCompleted,
		StartYear:   2025,
		CurrentYear: 2026,
		History:     []engine.YearResult{{Year: 2025}, {Year: 2026}},
	}
	p.Summary(snap)
	p.Extinct(snap)

	out := buf.String()
	if !strings.Contains(out, "Run r1  [completed]  years 2025-2026") {
		t.Errorf("summary header missing:\n%s", out)
	}
	if !strings.Contains(out, "Population extinct in 2026 after 1 year.") {
		t.Errorf("extinct line missing:\n%s", out)
	}
}
