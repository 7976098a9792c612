package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/lifesim/internal/engine"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "lifesim.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun(id string) engine.RunExport {
	return engine.RunExport{
		RunID:       id,
		StartYear:   2025,
		EndYear:     2027,
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		YearlyResults: []engine.YearResult{
			{Year: 2025, TotalPopulation: 12, AliveHumans: 10, AliveAnimals: 2, Single: 10,
				AliveBySpecies: map[string]int{"dog": 2}, EventLog: []string{}},
			{Year: 2026, TotalPopulation: 13, AliveHumans: 11, AliveAnimals: 2, Married: 2, Single: 9,
				Marriages: 1, Births: 1, AliveBySpecies: map[string]int{"dog": 2},
				EventLog: []string{"2026: #1 Ali and #2 Elif got married", "2026: #13 Can (Human) was born"}},
			{Year: 2027, TotalPopulation: 12, AliveHumans: 10, AliveAnimals: 2, Married: 1, Widowed: 1, Single: 8,
				Deaths: 1, Accidents: 1, AliveBySpecies: map[string]int{"dog": 2},
				EventLog: []string{"2027: #1 Ali (Human) died in an accident (fall)"}},
		},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	run := sampleRun("run-a")

	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := db.LoadRun(ctx, "run-a")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}

	if got.StartYear != 2025 || got.EndYear != 2027 || !got.GeneratedAt.Equal(run.GeneratedAt) {
		t.Errorf("header = %+v", got)
	}
	if len(got.YearlyResults) != 3 {
		t.Fatalf("years = %d, want 3", len(got.YearlyResults))
	}
	y := got.YearlyResults[1]
	if y.Marriages != 1 || y.Births != 1 || y.Married != 2 || y.AliveBySpecies["dog"] != 2 {
		t.Errorf("year 2026 = %+v", y)
	}
	if len(y.EventLog) != 2 || y.EventLog[0] != run.YearlyResults[1].EventLog[0] {
		t.Errorf("events out of order: %v", y.EventLog)
	}
	if got.YearlyResults[0].EventLog == nil {
		t.Error("empty event log loaded as nil")
	}

	// Saving again replaces rather than duplicates.
	run.YearlyResults = run.YearlyResults[:2]
	run.EndYear = 2026
	if err := db.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun again: %v", err)
	}
	got, err = db.LoadRun(ctx, "run-a")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if len(got.YearlyResults) != 2 || len(got.YearlyResults[1].EventLog) != 2 {
		t.Errorf("replace left stale rows: %d years", len(got.YearlyResults))
	}
}

func TestLoadRunNotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestSaveYearExtendsRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	run := sampleRun("run-b")

	for _, r := range run.YearlyResults {
		if err := db.SaveYear(ctx, "run-b", 2025, r); err != nil {
			t.Fatalf("SaveYear %d: %v", r.Year, err)
		}
	}
	// Duplicate delivery of the same year is harmless.
	if err := db.SaveYear(ctx, "run-b", 2025, run.YearlyResults[2]); err != nil {
		t.Fatalf("SaveYear duplicate: %v", err)
	}

	got, err := db.LoadRun(ctx, "run-b")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if got.StartYear != 2025 || got.EndYear != 2027 || len(got.YearlyResults) != 3 {
		t.Errorf("run = %d..%d with %d years", got.StartYear, got.EndYear, len(got.YearlyResults))
	}
	if n := len(got.YearlyResults[2].EventLog); n != 1 {
		t.Errorf("year 2027 events = %d, want 1", n)
	}
}

func TestListRunsAndRecentEvents(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	older := sampleRun("old")
	older.GeneratedAt = older.GeneratedAt.Add(-time.Hour)
	if err := db.SaveRun(ctx, older); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := db.SaveRun(ctx, sampleRun("new")); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	runs, err := db.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "new" || runs[1].RunID != "old" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Years != 3 {
		t.Errorf("years = %d, want 3", runs[0].Years)
	}

	events, err := db.RecentEvents(ctx, "new", 2)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 || events[0].Year != 2027 || events[1].Description != "2026: #13 Can (Human) was born" {
		t.Errorf("events = %+v", events)
	}
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta(MetaCurrentRun, "abc"); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}
	if err := db.SaveMeta(MetaCurrentRun, "def"); err != nil {
		t.Fatalf("SaveMeta: %v", err)
	}
	v, err := db.GetMeta(MetaCurrentRun)
	if err != nil || v != "def" {
		t.Errorf("GetMeta = %q, %v; want def", v, err)
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
	var timeout int
	if err := db.conn.Get(&timeout, "PRAGMA busy_timeout"); err != nil {
		t.Fatalf("busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}
