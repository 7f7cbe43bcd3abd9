package store

import (
	"database/sql"
	"fmt"
	"time"
)

// WorkerRun returns the run record for a task, or ErrNotFound if the task
// has never recorded a run.
func (s *Store) WorkerRun(taskName string) (*WorkerRun, error) {
	row := s.conn.QueryRow(
		`SELECT task_name, last_run_time, updated_at FROM worker_runs WHERE task_name = ?`,
		taskName,
	)

	var wr WorkerRun
	var last, updated string
	err := row.Scan(&wr.TaskName, &last, &updated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading run record %q: %w", taskName, err)
	}
	wr.LastRunTime = parseTimestamp(last)
	wr.UpdatedAt = parseTimestamp(updated)
	return &wr, nil
}

// RecordWorkerRun upserts the run record for a task. Each task keeps exactly
// one row, overwritten on every recorded run.
func (s *Store) RecordWorkerRun(taskName string, runTime time.Time) error {
	_, err := s.conn.Exec(
		`INSERT INTO worker_runs (task_name, last_run_time, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(task_name) DO UPDATE SET last_run_time = excluded.last_run_time, updated_at = excluded.updated_at`,
		taskName, timestamp(runTime), timestamp(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("recording run for %q: %w", taskName, err)
	}
	return nil
}

// AllWorkerRuns returns every run record, for status reporting.
func (s *Store) AllWorkerRuns() ([]WorkerRun, error) {
	rows, err := s.conn.Query(`SELECT task_name, last_run_time, updated_at FROM worker_runs ORDER BY task_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []WorkerRun
	for rows.Next() {
		var wr WorkerRun
		var last, updated string
		if err := rows.Scan(&wr.TaskName, &last, &updated); err != nil {
			return nil, err
		}
		wr.LastRunTime = parseTimestamp(last)
		wr.UpdatedAt = parseTimestamp(updated)
		runs = append(runs, wr)
	}
	return runs, rows.Err()
}
