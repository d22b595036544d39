package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a job id is unknown.
var ErrNotFound = errors.New("job not found")

// Save inserts or replaces the job row and stamps UpdatedAt.
func (s *Store) Save(ctx context.Context, job *Job) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errors.New("save job: id is required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	args, err := jobArgs(job)
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	query := fmt.Sprintf(`INSERT INTO jobs (%s) VALUES (%s)
        ON CONFLICT(id) DO UPDATE SET
            source_path = excluded.source_path,
            file_name = excluded.file_name,
            status = excluded.status,
            progress = excluded.progress,
            result = excluded.result,
            error_message = excluded.error_message,
            settings_json = excluded.settings_json,
            subtitles_json = excluded.subtitles_json,
            validation_json = excluded.validation_json,
            stages_json = excluded.stages_json,
            dictionary = excluded.dictionary,
            analyzed_topic = excluded.analyzed_topic,
            main_topic = excluded.main_topic,
            duration_ms = excluded.duration_ms,
            run_token = excluded.run_token,
            subtitle_path = excluded.subtitle_path,
            dictionary_path = excluded.dictionary_path,
            updated_at = excluded.updated_at`,
		jobColumns, makePlaceholders(len(args)))
	if _, err := s.execWithRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	return nil
}

// GetByID fetches a job by identifier. Missing jobs return (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		fmt.Sprintf("SELECT %s FROM jobs WHERE id = ?", jobColumns), id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// List returns jobs filtered by status, oldest first. No statuses means all.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs", jobColumns)
	var args []any
	if len(statuses) > 0 {
		query += fmt.Sprintf(" WHERE status IN (%s)", makePlaceholders(len(statuses)))
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Remove deletes a job by id. It reports whether a row was removed.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("remove job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove job rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearFinished removes completed and failed jobs and returns how many went.
func (s *Store) ClearFinished(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		"DELETE FROM jobs WHERE status IN (?, ?)", StatusCompleted, StatusError)
	if err != nil {
		return 0, fmt.Errorf("clear finished jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetInterrupted marks jobs left in processing by a previous daemon as
// failed. Pipelines never resume, so these runs cannot continue.
func (s *Store) ResetInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, progress = NULL, updated_at = ?
         WHERE status = ?`,
		StatusError, InterruptedReason, time.Now().UTC().Format(time.RFC3339Nano), StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("reset interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns job counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT status, COUNT(*) FROM jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}
