// Package persistence archives simulation runs in SQLite and as JSON export
// files.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/lifesim/internal/engine"
)

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for the run archive.
type DB struct {
	conn    *sqlx.DB
	retrier retry.Retry[struct{}]
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{
		conn: conn,
		// Writers can collide with dashboard readers; back off and retry.
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   4,
			InitialDelay:  25 * time.Millisecond,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
	}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		start_year INTEGER NOT NULL,
		end_year INTEGER NOT NULL,
		generated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS year_results (
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_population INTEGER NOT NULL,
		alive_humans INTEGER NOT NULL,
		alive_animals INTEGER NOT NULL,
		alive_by_species_json TEXT NOT NULL,
		married INTEGER NOT NULL,
		widowed INTEGER NOT NULL,
		single INTEGER NOT NULL,
		marriages INTEGER NOT NULL,
		births INTEGER NOT NULL,
		deaths INTEGER NOT NULL,
		accidents INTEGER NOT NULL,
		PRIMARY KEY (run_id, year)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_year ON events(run_id, year);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// inTx runs fn in a transaction, retrying the whole transaction on failure.
func (db *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	_, err := db.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return struct{}{}, err
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, tx.Commit()
	})
	return err
}

// SaveRun writes a whole run, replacing any previous copy of it.
func (db *DB) SaveRun(ctx context.Context, run engine.RunExport) error {
	slog.Debug("saving run", "run", run.RunID, "years", len(run.YearlyResults))

	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO runs (id, start_year, end_year, generated_at) VALUES (?, ?, ?, ?)",
			run.RunID, run.StartYear, run.EndYear, run.GeneratedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM year_results WHERE run_id = ?", run.RunID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE run_id = ?", run.RunID); err != nil {
			return err
		}
		for _, r := range run.YearlyResults {
			if err := insertYear(ctx, tx, run.RunID, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveYear appends one year to a run, creating the run row if needed and
// extending its end year. Saving the same year twice replaces it.
func (db *DB) SaveYear(ctx context.Context, runID string, startYear int, r engine.YearResult) error {
	return db.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO runs (id, start_year, end_year, generated_at) VALUES (?, ?, ?, ?)",
			runID, startYear, r.Year, time.Now().UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE runs SET end_year = MAX(end_year, ?) WHERE id = ?", r.Year, runID,
		); err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM events WHERE run_id = ? AND year = ?", runID, r.Year,
		); err != nil {
			return err
		}
		return insertYear(ctx, tx, runID, r)
	})
}

func insertYear(ctx context.Context, tx *sqlx.Tx, runID string, r engine.YearResult) error {
	species, err := json.Marshal(r.AliveBySpecies)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO year_results
		(run_id, year, total_population, alive_humans, alive_animals, alive_by_species_json,
		 married, widowed, single, marriages, births, deaths, accidents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Year, r.TotalPopulation, r.AliveHumans, r.AliveAnimals, string(species),
		r.Married, r.Widowed, r.Single, r.Marriages, r.Births, r.Deaths, r.Accidents,
	)
	if err != nil {
		return fmt.Errorf("insert year %d: %w", r.Year, err)
	}

	if len(r.EventLog) == 0 {
		return nil
	}
	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO events (run_id, year, seq, description) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, ev := range r.EventLog {
		if _, err := stmt.ExecContext(ctx, runID, r.Year, i, ev); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

type runRow struct {
	ID          string `db:"id"`
	StartYear   int    `db:"start_year"`
	EndYear     int    `db:"end_year"`
	GeneratedAt string `db:"generated_at"`
	Years       int    `db:"years"`
}

type yearRow struct {
	Year            int    `db:"year"`
	TotalPopulation int    `db:"total_population"`
	AliveHumans     int    `db:"alive_humans"`
	AliveAnimals    int    `db:"alive_animals"`
	SpeciesJSON     string `db:"alive_by_species_json"`
	Married         int    `db:"married"`
	Widowed         int    `db:"widowed"`
	Single          int    `db:"single"`
	Marriages       int    `db:"marriages"`
	Births          int    `db:"births"`
	Deaths          int    `db:"deaths"`
	Accidents       int    `db:"accidents"`
}

// Event is one archived narrative line.
type Event struct {
	Year        int    `db:"year" json:"year"`
	Description string `db:"description" json:"description"`
}

// RunSummary describes an archived run without its results.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartYear   int       `json:"start_year"`
	EndYear     int       `json:"end_year"`
	GeneratedAt time.Time `json:"generated_at"`
	Years       int       `json:"years"`
}

// LoadRun reads a run back in export form.
func (db *DB) LoadRun(ctx context.Context, runID string) (engine.RunExport, error) {
	var row runRow
	err := db.conn.GetContext(ctx, &row,
		"SELECT id, start_year, end_year, generated_at, 0 AS years FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.RunExport{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return engine.RunExport{}, err
	}

	var years []yearRow
	if err := db.conn.SelectContext(ctx, &years, `SELECT year, total_population, alive_humans,
		alive_animals, alive_by_species_json, married, widowed, single, marriages, births,
		deaths, accidents FROM year_results WHERE run_id = ? ORDER BY year`, runID); err != nil {
		return engine.RunExport{}, fmt.Errorf("select years: %w", err)
	}

	var events []Event
	if err := db.conn.SelectContext(ctx, &events,
		"SELECT year, description FROM events WHERE run_id = ? ORDER BY year, seq", runID); err != nil {
		return engine.RunExport{}, fmt.Errorf("select events: %w", err)
	}
	byYear := make(map[int][]string)
	for _, e := range events {
		byYear[e.Year] = append(byYear[e.Year], e.Description)
	}

	out := engine.RunExport{
		RunID:         row.ID,
		StartYear:     row.StartYear,
		EndYear:       row.EndYear,
		GeneratedAt:   parseTime(row.GeneratedAt),
		YearlyResults: make([]engine.YearResult, 0, len(years)),
	}
	for _, y := range years {
		r := engine.YearResult{
			Year:            y.Year,
			TotalPopulation: y.TotalPopulation,
			AliveHumans:     y.AliveHumans,
			AliveAnimals:    y.AliveAnimals,
			Married:         y.Married,
			Widowed:         y.Widowed,
			Single:          y.Single,
			Marriages:       y.Marriages,
			Births:          y.Births,
			Deaths:          y.Deaths,
			Accidents:       y.Accidents,
			EventLog:        byYear[y.Year],
		}
		if r.EventLog == nil {
			r.EventLog = []string{}
		}
		if err := json.Unmarshal([]byte(y.SpeciesJSON), &r.AliveBySpecies); err != nil {
			return engine.RunExport{}, fmt.Errorf("decode species for year %d: %w", y.Year, err)
		}
		out.YearlyResults = append(out.YearlyResults, r)
	}
	return out, nil
}

// ListRuns returns every archived run, most recent first.
func (db *DB) ListRuns(ctx context.Context) ([]RunSummary, error) {
	var rows []runRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT r.id, r.start_year, r.end_year, r.generated_at,
		(SELECT COUNT(*) FROM year_results y WHERE y.run_id = r.id) AS years
		FROM runs r ORDER BY r.generated_at DESC`)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, RunSummary{
			RunID:       r.ID,
			StartYear:   r.StartYear,
			EndYear:     r.EndYear,
			GeneratedAt: parseTime(r.GeneratedAt),
			Years:       r.Years,
		})
	}
	return out, nil
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(ctx context.Context, runID string, limit int) ([]Event, error) {
	var events []Event
	err := db.conn.SelectContext(ctx, &events,
		"SELECT year, description FROM events WHERE run_id = ? ORDER BY year DESC, seq DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in archive metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		slog.Warn("bad timestamp in archive", "value", s, "error", err)
	}
	return t
}
