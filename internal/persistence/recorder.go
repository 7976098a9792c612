package persistence

import (
	"context"
	"log/slog"

	"github.com/talgya/lifesim/internal/engine"
)

// MetaCurrentRun is the world_meta key holding the id of the live run.
const MetaCurrentRun = "current_run"

// Recorder mirrors a controller's runs into the archive as they happen.
type Recorder struct {
	db   *DB
	ctrl *engine.Controller

	runID     string
	startYear int
}

// NewRecorder creates a recorder for ctrl.
func NewRecorder(db *DB, ctrl *engine.Controller) *Recorder {
	return &Recorder{db: db, ctrl: ctrl}
}

// Run records until ctx is done. Each year is appended as it is produced; a
// state change rewrites the whole run, which also fills any years whose
// notification was dropped. Notifications already queued when ctx is done
// are still written.
func (r *Recorder) Run(ctx context.Context) error {
	id, ch := r.ctrl.Subscribe()
	defer r.ctrl.Unsubscribe(id)

	// Cancelling ctx stops listening; a write already under way completes.
	wctx := context.WithoutCancel(ctx)
	if err := r.saveSnapshot(wctx, r.ctrl.GetSnapshot()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			r.drain(wctx, ch)
			return nil
		case n, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(wctx, n)
		}
	}
}

func (r *Recorder) drain(ctx context.Context, ch <-chan engine.Notification) {
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			r.handle(ctx, n)
		default:
			return
		}
	}
}

func (r *Recorder) handle(ctx context.Context, n engine.Notification) {
	switch n.Type {
	case engine.NotifyStateChanged:
		if err := r.saveSnapshot(ctx, *n.Snapshot); err != nil {
			slog.Error("record run failed", "run", n.Snapshot.RunID, "error", err)
		}
	case engine.NotifyYearAdvanced:
		if r.runID == "" {
			return
		}
		if err := r.db.SaveYear(ctx, r.runID, r.startYear, n.Update.Result); err != nil {
			slog.Error("record year failed", "run", r.runID, "year", n.Update.Result.Year, "error", err)
		}
	}
}

func (r *Recorder) saveSnapshot(ctx context.Context, snap engine.Snapshot) error {
	if snap.RunID != r.runID {
		slog.Info("recording run", "run", snap.RunID, "start_year", snap.StartYear)
		if err := r.db.SaveMeta(MetaCurrentRun, snap.RunID); err != nil {
			return err
		}
	}
	r.runID = snap.RunID
	r.startYear = snap.StartYear
	return r.db.SaveRun(ctx, ExportFromSnapshot(snap))
}
