package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/transcript-harvester/backend/internal/models"
)

// GetJob reads the singleton job row.
func (s *Store) GetJob(ctx context.Context) (models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT status, active_workers, started_at, stopped_at FROM jobs WHERE id = 1
    `)

	var (
		job       models.Job
		status    string
		startedAt sql.NullTime
		stoppedAt sql.NullTime
	)
	if err := row.Scan(&status, &job.ActiveWorkers, &startedAt, &stoppedAt); err != nil {
		return models.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = models.JobStatus(status)
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		job.StartedAt = &t
	}
	if stoppedAt.Valid {
		t := stoppedAt.Time.UTC()
		job.StoppedAt = &t
	}
	return job, nil
}

// SetJobRunning marks the job singleton running with the given worker count
// and a fresh started_at timestamp.
func (s *Store) SetJobRunning(ctx context.Context, activeWorkers int) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE jobs SET status = 'running', active_workers = ?, started_at = CURRENT_TIMESTAMP, stopped_at = NULL WHERE id = 1
    `, activeWorkers)
	if err != nil {
		return fmt.Errorf("set job running: %w", err)
	}
	return nil
}

// SetJobPaused marks the job singleton paused.
func (s *Store) SetJobPaused(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = 'paused' WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("set job paused: %w", err)
	}
	return nil
}

// SetJobStopped marks the job singleton idle with a stopped_at timestamp.
func (s *Store) SetJobStopped(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE jobs SET status = 'idle', active_workers = 0, stopped_at = CURRENT_TIMESTAMP WHERE id = 1
    `)
	if err != nil {
		return fmt.Errorf("set job stopped: %w", err)
	}
	return nil
}

// SetActiveWorkers updates the advisory worker count mirror.
func (s *Store) SetActiveWorkers(ctx context.Context, n int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET active_workers = ? WHERE id = 1`, n)
	if err != nil {
		return fmt.Errorf("set active workers: %w", err)
	}
	return nil
}
