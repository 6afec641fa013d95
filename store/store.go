// Package store persists pipeline run results to a SQLite database in the
// working directory: per-stage summaries, quality gate records, detections
// and acquisition metadata. The database outlives the staged image
// directories, which are destructively overwritten on every run.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"thermopipe/types"
)

// Store wraps the run database connection.
type Store struct {
	db *sql.DB
}

// Open initializes (or opens) the run database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		family TEXT NOT NULL,
		working_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stage_reports (
		run_id INTEGER NOT NULL,
		stage TEXT NOT NULL,
		images_in INTEGER,
		images_out INTEGER,
		duration_ms INTEGER,
		completed_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS quality_records (
		run_id INTEGER NOT NULL,
		composite_name TEXT NOT NULL,
		image_path TEXT NOT NULL,
		score REAL NOT NULL,
		passed INTEGER NOT NULL,
		composite_pass INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS detections (
		run_id INTEGER NOT NULL,
		image_path TEXT NOT NULL,
		x0 INTEGER, y0 INTEGER, x1 INTEGER, y1 INTEGER,
		score REAL NOT NULL,
		class_id INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS image_meta (
		run_id INTEGER NOT NULL,
		path TEXT NOT NULL,
		camera_model TEXT,
		capture_time TEXT,
		width INTEGER,
		height INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_stage_reports_run ON stage_reports(run_id);
	CREATE INDEX IF NOT EXISTS idx_quality_records_run ON quality_records(run_id);
	CREATE INDEX IF NOT EXISTS idx_detections_run ON detections(run_id);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating run schema: %v", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a pipeline run and returns its id.
func (s *Store) BeginRun(family, workingDir string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (family, working_dir, started_at, status) VALUES (?, ?, ?, 'running')`,
		family, workingDir, time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("cannot record run start: %v", err)
	}
	return res.LastInsertId()
}

// FinishRun marks a run as completed or failed.
func (s *Store) FinishRun(runID int64, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339), status, runID)
	if err != nil {
		return fmt.Errorf("cannot record run finish: %v", err)
	}
	return nil
}

// RecordStage stores one stage execution summary.
func (s *Store) RecordStage(runID int64, report types.StageReport) error {
	_, err := s.db.Exec(
		`INSERT INTO stage_reports (run_id, stage, images_in, images_out, duration_ms, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, report.Stage, report.ImagesIn, report.ImagesOut, report.DurationMS,
		time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cannot record stage report for %s: %v", report.Stage, err)
	}
	return nil
}

// RecordQuality stores the quality gate outcome of every composite group.
func (s *Store) RecordQuality(runID int64, records []types.QualityRecord) error {
	stmt, err := s.db.Prepare(
		`INSERT INTO quality_records (run_id, composite_name, image_path, score, passed, composite_pass)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare quality insert: %v", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		for i, path := range rec.Paths {
			if _, err := stmt.Exec(runID, rec.CompositeName, path, rec.Scores[i], rec.Passed[i], rec.CompositePass); err != nil {
				return fmt.Errorf("cannot insert quality record for %s: %v", path, err)
			}
		}
	}
	return nil
}

// RecordDetections stores the passing detections of one composite image.
func (s *Store) RecordDetections(runID int64, imagePath string, detections []types.Detection) error {
	stmt, err := s.db.Prepare(
		`INSERT INTO detections (run_id, image_path, x0, y0, x1, y1, score, class_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare detection insert: %v", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(runID, imagePath,
			det.Box.Min.X, det.Box.Min.Y, det.Box.Max.X, det.Box.Max.Y,
			det.Score, det.ClassID); err != nil {
			return fmt.Errorf("cannot insert detection for %s: %v", imagePath, err)
		}
	}
	return nil
}

// RecordImageMeta stores acquisition metadata for one image.
func (s *Store) RecordImageMeta(runID int64, meta types.ImageMeta) error {
	_, err := s.db.Exec(
		`INSERT INTO image_meta (run_id, path, camera_model, capture_time, width, height)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		runID, meta.Path, meta.CameraModel, meta.CaptureTime, meta.Width, meta.Height)
	if err != nil {
		return fmt.Errorf("cannot insert image metadata for %s: %v", meta.Path, err)
	}
	return nil
}

// RunStats summarizes the stored outcome of one run.
type RunStats struct {
	GroupsPassed int
	GroupsTotal  int
	Detections   int
}

// GetRunStats retrieves aggregate statistics about a completed run.
func (s *Store) GetRunStats(runID int64) (*RunStats, error) {
	var stats RunStats

	err := s.db.QueryRow(
		`SELECT COUNT(DISTINCT composite_name) FROM quality_records WHERE run_id = ? AND composite_pass = 1`,
		runID).Scan(&stats.GroupsPassed)
	if err != nil {
		return nil, fmt.Errorf("failed to count passing groups: %v", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(DISTINCT composite_name) FROM quality_records WHERE run_id = ?`,
		runID).Scan(&stats.GroupsTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to count groups: %v", err)
	}

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM detections WHERE run_id = ?`, runID).Scan(&stats.Detections)
	if err != nil {
		return nil, fmt.Errorf("failed to count detections: %v", err)
	}

	return &stats, nil
}
