// Package goaldb records published goal estimates in SQLite so that runs
// can be replayed and compared offline.
package goaldb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/goal-distance/internal/goal"
	"github.com/banshee-data/goal-distance/internal/monitoring"
	"github.com/banshee-data/goal-distance/internal/timeutil"
)

// ErrUnknownRun is returned when a run ID does not exist.
var ErrUnknownRun = errors.New("goaldb: unknown run")

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// Run is one process lifetime of estimates.
type Run struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	StartedAt     int64  `json:"started_at"`
	FinishedAt    *int64 `json:"finished_at,omitempty"`
	EstimateCount int    `json:"estimate_count"`
}

// EstimateRecord is one stored estimate.
type EstimateRecord struct {
	ID          int64    `json:"id"`
	RunID       string   `json:"run_id"`
	Seq         uint64   `json:"seq"`
	RecordedAt  int64    `json:"recorded_at"`
	Distance    float64  `json:"distance"`
	RawDistance float64  `json:"raw_distance"`
	Angle       *float64 `json:"angle"`
	Samples     int      `json:"samples"`
	Inliers     int      `json:"inliers"`
	FitError    string   `json:"fit_error,omitempty"`
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*DB, error) {
	return OpenWithClock(path, timeutil.RealClock{})
}

// OpenWithClock is Open with an injectable clock for timestamps.
func OpenWithClock(path string, clock timeutil.Clock) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection so per-connection pragmas hold for every statement.
	sqlDB.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	db := &DB{DB: sqlDB, clock: clock}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	monitoring.Logf("opened estimate database %s", path)
	return db, nil
}

// StartRun creates a run record and returns its ID.
func (db *DB) StartRun(source string) (string, error) {
	runID := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO goal_runs (run_id, source, started_at) VALUES (?, ?, ?)`,
		runID, source, db.clock.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return runID, nil
}

// RecordEstimate stores one published estimate of frame seq.
func (db *DB) RecordEstimate(runID string, seq uint64, e goal.Estimate) error {
	var angle sql.NullFloat64
	if e.Angle != nil {
		angle = sql.NullFloat64{Float64: *e.Angle, Valid: true}
	}
	var fitErr sql.NullString
	if e.FitErr != nil {
		fitErr = sql.NullString{String: e.FitErr.Error(), Valid: true}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE goal_runs SET estimate_count = estimate_count + 1 WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	_, err = tx.Exec(`
		INSERT INTO goal_estimates
			(run_id, seq, recorded_at, distance, raw_distance, angle, samples, inliers, fit_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, int64(seq), db.clock.Now().UnixNano(), e.Distance, e.RawDistance,
		angle, e.Samples, e.Inliers, fitErr,
	)
	if err != nil {
		return fmt.Errorf("failed to insert estimate: %w", err)
	}
	return tx.Commit()
}

// FinishRun stamps the run's end time.
func (db *DB) FinishRun(runID string) error {
	res, err := db.Exec(
		`UPDATE goal_runs SET finished_at = ? WHERE run_id = ?`,
		db.clock.Now().UnixNano(), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// GetRun returns a run by ID.
func (db *DB) GetRun(runID string) (*Run, error) {
	var r Run
	var finished sql.NullInt64
	err := db.QueryRow(
		`SELECT run_id, source, started_at, finished_at, estimate_count FROM goal_runs WHERE run_id = ?`,
		runID,
	).Scan(&r.RunID, &r.Source, &r.StartedAt, &finished, &r.EstimateCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Int64
	}
	return &r, nil
}

// ListEstimates returns the estimates of a run in frame order.
func (db *DB) ListEstimates(runID string) ([]EstimateRecord, error) {
	rows, err := db.Query(`
		SELECT id, run_id, seq, recorded_at, distance, raw_distance, angle, samples, inliers, fit_error
		FROM goal_estimates
		WHERE run_id = ?
		ORDER BY seq, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query estimates: %w", err)
	}
	defer rows.Close()

	var out []EstimateRecord
	for rows.Next() {
		var rec EstimateRecord
		var seq int64
		var angle sql.NullFloat64
		var fitErr sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &seq, &rec.RecordedAt, &rec.Distance,
			&rec.RawDistance, &angle, &rec.Samples, &rec.Inliers, &fitErr); err != nil {
			return nil, fmt.Errorf("failed to scan estimate row: %w", err)
		}
		rec.Seq = uint64(seq)
		if angle.Valid {
			a := angle.Float64
			rec.Angle = &a
		}
		rec.FitError = fitErr.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneBefore deletes runs (and their estimates) started before t.
func (db *DB) PruneBefore(t time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM goal_runs WHERE started_at < ?`, t.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}
