// Package store persists pipeline runs and their results to SQLite:
// run lifecycle, per-station cleaning reports, solar-potential metrics,
// and rankings. The pure-Go driver keeps the binary cgo-free.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"helioscan/internal/cleaning"
	"helioscan/internal/potential"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Run is one pipeline execution.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Stations   int
	Status     string // running, ok, partial, failed
	Error      string
}

// RankingRow is one persisted ranking entry.
type RankingRow struct {
	Rank           int
	Station        string
	CompositeScore float64
}

// New opens (creating if needed) the database at path. ":memory:" is
// supported for tests.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("store: create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		stations INTEGER DEFAULT 0,
		status TEXT DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS cleaning_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		station TEXT NOT NULL,
		initial_rows INTEGER NOT NULL,
		final_rows INTEGER NOT NULL,
		outliers_removed INTEGER NOT NULL,
		imputed_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, station)
	);
	CREATE INDEX IF NOT EXISTS idx_cleaning_run ON cleaning_reports(run_id);

	CREATE TABLE IF NOT EXISTS station_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		station TEXT NOT NULL,
		metric TEXT NOT NULL,
		value REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, station, metric)
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_run ON station_metrics(run_id);

	CREATE TABLE IF NOT EXISTS rankings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		rank INTEGER NOT NULL,
		station TEXT NOT NULL,
		composite_score REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, rank)
	);
	CREATE INDEX IF NOT EXISTS idx_rankings_run ON rankings(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: initialize schema: %w", err)
	}
	return nil
}

// migration adds a column to an existing table. Databases created
// before the column existed get it on open.
type migration struct {
	table  string
	column string
	def    string
}

var pendingMigrations = []migration{
	// Run error message (added once partial runs started recording why).
	{"runs", "error", "TEXT DEFAULT ''"},
}

func (s *Store) migrate() error {
	for _, m := range pendingMigrations {
		has, err := s.hasColumn(m.table, m.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.table, m.column, m.def)
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store: migrate %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func (s *Store) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("store: table_info %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// CreateRun records the start of a pipeline run.
func (s *Store) CreateRun(id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO runs (id, started_at, status) VALUES (?, ?, 'running')",
		id, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: create run: %w", err)
	}
	return nil
}

// FinishRun records a run's outcome.
func (s *Store) FinishRun(id, status, errMsg string, stations int, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, status = ?, error = ?, stations = ? WHERE id = ?",
		finishedAt.UTC(), status, errMsg, stations, id,
	)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("store: finish run: no run with id %s", id)
	}
	return nil
}

// SaveCleaningReport persists one station's cleaning report.
func (s *Store) SaveCleaningReport(runID string, rep *cleaning.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	imputed, err := json.Marshal(rep.Imputed)
	if err != nil {
		return fmt.Errorf("store: marshal imputed: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO cleaning_reports (run_id, station, initial_rows, final_rows, outliers_removed, imputed_json)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, station) DO UPDATE SET
		   initial_rows = excluded.initial_rows,
		   final_rows = excluded.final_rows,
		   outliers_removed = excluded.outliers_removed,
		   imputed_json = excluded.imputed_json`,
		runID, rep.Station, rep.InitialRows, rep.FinalRows, rep.OutliersRemoved, string(imputed),
	)
	if err != nil {
		return fmt.Errorf("store: save cleaning report: %w", err)
	}
	return nil
}

// SaveMetrics persists one station's solar-potential metrics as rows.
func (s *Store) SaveMetrics(runID, station string, m potential.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO station_metrics (run_id, station, metric, value) VALUES (?, ?, ?, ?)
		 ON CONFLICT(run_id, station, metric) DO UPDATE SET value = excluded.value`,
	)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for metric, value := range map[string]float64{
		"mean_ghi":             m.MeanGHI,
		"std_ghi":              m.StdGHI,
		"cv":                   m.CV,
		"consistency":          m.Consistency,
		"peak_ghi":             m.PeakGHI,
		"peak_95th":            m.Peak95th,
		"operational_hours":    float64(m.OperationalHours),
		"high_potential_hours": float64(m.HighPotentialHours),
	} {
		if _, err := stmt.Exec(runID, station, metric, value); err != nil {
			return fmt.Errorf("store: save metric %s: %w", metric, err)
		}
	}
	return tx.Commit()
}

// SaveRankings persists the ranking for a run.
func (s *Store) SaveRankings(runID string, ranked []potential.Ranked) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM rankings WHERE run_id = ?", runID); err != nil {
		return fmt.Errorf("store: clear rankings: %w", err)
	}
	for _, r := range ranked {
		if _, err := tx.Exec(
			"INSERT INTO rankings (run_id, rank, station, composite_score) VALUES (?, ?, ?, ?)",
			runID, r.Rank, r.Station, r.CompositeScore,
		); err != nil {
			return fmt.Errorf("store: save ranking: %w", err)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recently started run, or nil if none.
func (s *Store) LatestRun() (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT id, started_at, finished_at, stations, status, error FROM runs ORDER BY started_at DESC LIMIT 1",
	)
	var r Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.StartedAt, &finished, &r.Stations, &r.Status, &r.Error); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: latest run: %w", err)
	}
	// Runs still in flight have no finish time yet.
	if finished.Valid {
		r.FinishedAt = finished.Time
	} else {
		r.FinishedAt = r.StartedAt
	}
	return &r, nil
}

// RunHistory returns up to limit runs, newest first.
func (s *Store) RunHistory(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, started_at, finished_at, stations, status, error FROM runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: run history: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Stations, &r.Status, &r.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		} else {
			r.FinishedAt = r.StartedAt
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// MetricsForRun returns station -> metric -> value for a run.
func (s *Store) MetricsForRun(runID string) (map[string]map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT station, metric, value FROM station_metrics WHERE run_id = ?", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: metrics for run: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]float64)
	for rows.Next() {
		var station, metric string
		var value float64
		if err := rows.Scan(&station, &metric, &value); err != nil {
			return nil, err
		}
		if out[station] == nil {
			out[station] = make(map[string]float64)
		}
		out[station][metric] = value
	}
	return out, rows.Err()
}

// RankingsForRun returns a run's ranking in rank order.
func (s *Store) RankingsForRun(runID string) ([]RankingRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT rank, station, composite_score FROM rankings WHERE run_id = ? ORDER BY rank", runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: rankings for run: %w", err)
	}
	defer rows.Close()

	var out []RankingRow
	for rows.Next() {
		var r RankingRow
		if err := rows.Scan(&r.Rank, &r.Station, &r.CompositeScore); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetStats returns row counts per table, mostly for diagnostics.
func (s *Store) GetStats() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, table := range []string{"runs", "cleaning_reports", "station_metrics", "rankings"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("store: count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}
