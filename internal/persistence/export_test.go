package persistence

import (
	"path/filepath"
	"testing"

	"github.com/talgya/lifesim/internal/engine"
)

func TestExportFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "run.json")
	run := sampleRun("file-run")

	if err := WriteExportFile(path, run); err != nil {
		t.Fatalf("WriteExportFile: %v", err)
	}
	got, err := ReadExportFile(path)
	if err != nil {
		t.Fatalf("ReadExportFile: %v", err)
	}
	if got.RunID != run.RunID || got.EndYear != run.EndYear || len(got.YearlyResults) != 3 {
		t.Errorf("read back %+v", got)
	}
	if got.YearlyResults[2].EventLog[0] != run.YearlyResults[2].EventLog[0] {
		t.Error("event text changed")
	}
}

func TestReadExportFileMissing(t *testing.T) {
	if _, err := ReadExportFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExportFromSnapshot(t *testing.T) {
	snap := engine.Snapshot{RunID: "x", StartYear: 2000, CurrentYear: 2003,
		History: make([]engine.YearResult, 4)}
	exp := ExportFromSnapshot(snap)
	if exp.EndYear != 2003 || exp.StartYear != 2000 || len(exp.YearlyResults) != 4 || exp.GeneratedAt.IsZero() {
		t.Errorf("export = %+v", exp)
	}
}
