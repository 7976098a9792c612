// Package console renders simulation results as plain text and drives
// terminal sessions.
package console

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/lifesim/internal/engine"
)

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Printer writes human-readable reports.
type Printer struct {
	w io.Writer

	// MaxEvents limits the events printed per year. Zero prints all of them.
	MaxEvents int
}

// NewPrinter creates a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func count(n int) string {
	return humanize.Comma(int64(n))
}

// Summary prints the state of a run and its latest census.
func (p *Printer) Summary(snap engine.Snapshot) {
	fmt.Fprintf(p.w, "Run %s  [%s]  years %d-%d\n", snap.RunID, snap.State, snap.StartYear, snap.CurrentYear)
	latest, ok := snap.Latest()
	if !ok {
		return
	}
	p.census(latest)
}

func (p *Printer) census(r engine.YearResult) {
	fmt.Fprintf(p.w, "  Population: %s (humans %s, animals %s)\n",
		count(r.TotalPopulation), count(r.AliveHumans), count(r.AliveAnimals))
	fmt.Fprintf(p.w, "  Humans: %s single, %s married, %s widowed\n",
		count(r.Single), count(r.Married), count(r.Widowed))

	if len(r.AliveBySpecies) > 0 {
		species := make([]string, 0, len(r.AliveBySpecies))
		for s := range r.AliveBySpecies {
			species = append(species, s)
		}
		sort.Strings(species)
		fmt.Fprint(p.w, "  Animals:")
		for _, s := range species {
			fmt.Fprintf(p.w, " %s %s", s, count(r.AliveBySpecies[s]))
		}
		fmt.Fprintln(p.w)
	}
}

// Year prints one tick's counters, census and event log.
func (p *Printer) Year(r engine.YearResult) {
	fmt.Fprintf(p.w, "=== Year %d ===\n", r.Year)
	fmt.Fprintf(p.w, "  Marriages %s | Births %s | Deaths %s | Accidents %s\n",
		count(r.Marriages), count(r.Births), count(r.Deaths), count(r.Accidents))
	p.census(r)

	events := r.EventLog
	hidden := 0
	if p.MaxEvents > 0 && len(events) > p.MaxEvents {
		hidden = len(events) - p.MaxEvents
		events = events[:p.MaxEvents]
	}
	for _, e := range events {
		fmt.Fprintf(p.w, "  - %s\n", e)
	}
	if hidden > 0 {
		fmt.Fprintf(p.w, "  ... and %s more\n", count(hidden))
	}
}

// Extinct prints the end-of-run notice.
func (p *Printer) Extinct(snap engine.Snapshot) {
	years := snap.CurrentYear - snap.StartYear
	fmt.Fprintf(p.w, "Population extinct in %d after %s %s.\n", snap.CurrentYear, count(years), plural(years, "year", "years"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
