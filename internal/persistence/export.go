package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/talgya/lifesim/internal/engine"
)

// ExportFromSnapshot converts a controller snapshot to export form.
func ExportFromSnapshot(s engine.Snapshot) engine.RunExport {
	return engine.RunExport{
		RunID:         s.RunID,
		StartYear:     s.StartYear,
		EndYear:       s.CurrentYear,
		GeneratedAt:   time.Now().UTC(),
		YearlyResults: s.History,
	}
}

// WriteExportFile writes run as indented JSON, creating parent directories.
func WriteExportFile(path string, run engine.RunExport) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// ReadExportFile reads a file written by WriteExportFile.
func ReadExportFile(path string) (engine.RunExport, error) {
	var run engine.RunExport
	data, err := os.ReadFile(path)
	if err != nil {
		return run, fmt.Errorf("read export: %w", err)
	}
	if err := json.Unmarshal(data, &run); err != nil {
		return run, fmt.Errorf("decode export %s: %w", path, err)
	}
	return run, nil
}
