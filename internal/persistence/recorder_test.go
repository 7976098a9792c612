package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/entropy"
)

func waitForYears(t *testing.T, db *DB, runID string, want int) engine.RunExport {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		run, err := db.LoadRun(context.Background(), runID)
		if err == nil && len(run.YearlyResults) >= want {
			return run
		}
		if time.Now().After(deadline) {
			t.Fatalf("run %s never reached %d years (last err %v, have %d)", runID, want, err, len(run.YearlyResults))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRecorderFollowsController(t *testing.T) {
	db := openTestDB(t)
	ctrl, err := engine.NewController(config.Default(), engine.Options{
		Interval:    time.Hour,
		HumanCount:  20,
		AnimalCount: 4,
		StartYear:   2025,
		NewSource:   func() entropy.Source { return entropy.NewSeeded(5) },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	rec := NewRecorder(db, ctrl)
	go func() {
		defer wg.Done()
		if err := rec.Run(ctx); err != nil {
			t.Errorf("Recorder.Run: %v", err)
		}
	}()

	first := ctrl.GetSnapshot().RunID
	waitForYears(t, db, first, 1)
	for i := 0; i < 3; i++ {
		if _, err := ctrl.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	run := waitForYears(t, db, first, 4)
	if run.EndYear != 2028 {
		t.Errorf("EndYear = %d, want 2028", run.EndYear)
	}

	if err := ctrl.Reset(6, 0, 1990); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	second := ctrl.GetSnapshot().RunID
	waitForYears(t, db, second, 1)

	cancel()
	wg.Wait()

	cur, err := db.GetMeta(MetaCurrentRun)
	if err != nil || cur != second {
		t.Errorf("current run meta = %q, %v; want %q", cur, err, second)
	}
	runs, err := db.ListRuns(context.Background())
	if err != nil || len(runs) != 2 {
		t.Errorf("ListRuns = %d runs, %v; want 2", len(runs), err)
	}
}

func TestRecorderWritesQueuedNotificationsOnStop(t *testing.T) {
	db := openTestDB(t)
	ctrl, err := engine.NewController(config.Default(), engine.Options{
		Interval:    time.Hour,
		HumanCount:  10,
		AnimalCount: 2,
		StartYear:   2025,
		NewSource:   func() entropy.Source { return entropy.NewSeeded(8) },
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := NewRecorder(db, ctrl).Run(ctx); err != nil {
			t.Errorf("Recorder.Run: %v", err)
		}
	}()
	runID := ctrl.GetSnapshot().RunID
	waitForYears(t, db, runID, 1)

	// Step delivers its notifications before returning, so they are queued
	// by the time the recorder is told to stop.
	for i := 0; i < 2; i++ {
		if _, err := ctrl.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	cancel()
	<-done

	run, err := db.LoadRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if len(run.YearlyResults) != 3 || run.EndYear != 2027 {
		t.Errorf("archived %d years ending %d, want 3 ending 2027", len(run.YearlyResults), run.EndYear)
	}
}
