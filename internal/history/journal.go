package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelcraft/internal/logging"
	"reelcraft/internal/pipeline"
)

const upsertJobSQL = `
INSERT INTO jobs (job_id, title, status, last_stage, step, final_video, error_message, started_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
    title = CASE WHEN excluded.title <> '' THEN excluded.title ELSE jobs.title END,
    status = excluded.status,
    last_stage = excluded.last_stage,
    step = excluded.step,
    final_video = CASE
        WHEN excluded.last_stage = 'assemble' THEN NULL
        ELSE COALESCE(excluded.final_video, jobs.final_video)
    END,
    error_message = excluded.error_message,
    updated_at = excluded.updated_at`

// Record journals one pipeline event, creating the job row on first sight.
func (s *Store) Record(ctx context.Context, evt pipeline.Event) error {
	ctx = ensureContext(ctx)
	jobID := strings.TrimSpace(evt.JobID)
	if jobID == "" {
		return errors.New("record event: job id is required")
	}
	at := evt.At
	if at.IsZero() {
		at = s.now()
	}
	stamp := formatTime(at)

	status := StatusActive
	var errMsg sql.NullString
	switch {
	case evt.Kind == pipeline.EventFailed:
		status = StatusFailed
		errMsg = nullableString(evt.Message)
	case evt.Kind == pipeline.EventCompleted && evt.Locator != "":
		status = StatusRendered
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, upsertJobSQL,
			jobID, strings.TrimSpace(evt.Title), string(status), string(evt.Stage), int(evt.Step),
			nullableString(evt.Locator), errMsg, stamp, stamp,
		); err != nil {
			return fmt.Errorf("upsert job %s: %w", jobID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stage_events (job_id, stage, kind, step, message, locator, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			jobID, string(evt.Stage), string(evt.Kind), int(evt.Step),
			nullableString(evt.Message), nullableString(evt.Locator), stamp,
		); err != nil {
			return fmt.Errorf("insert stage event: %w", err)
		}
		return tx.Commit()
	})
}

// Observe implements pipeline.Observer. Journal failures are logged and
// never surface to the pipeline.
func (s *Store) Observe(ctx context.Context, evt pipeline.Event) {
	// The transition context may already be cancelled by a reset; the
	// event is still worth keeping.
	ctx = context.WithoutCancel(ensureContext(ctx))
	if err := s.Record(ctx, evt); err != nil {
		logging.WarnWithContext(s.logger, "history record failed", "history_record_failed",
			logging.String(logging.FieldJobID, evt.JobID),
			logging.String(logging.FieldStage, string(evt.Stage)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the state directory is writable"),
		)
	}
}

const jobColumns = `job_id, title, status, last_stage, step, final_video, error_message, started_at, updated_at`

// Recent lists the most recently updated jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY updated_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Job returns one journaled job, or nil when the id is unknown.
func (s *Store) Job(ctx context.Context, jobID string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Events lists a job's stage events in the order they were recorded.
func (s *Store) Events(ctx context.Context, jobID string) ([]StageEvent, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, stage, kind, step, message, locator, created_at
         FROM stage_events WHERE job_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list events for %s: %w", jobID, err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var (
			evt       StageEvent
			message   sql.NullString
			locator   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&evt.ID, &evt.JobID, &evt.Stage, &evt.Kind, &evt.Step, &message, &locator, &createdAt); err != nil {
			return nil, err
		}
		evt.Message = message.String
		evt.Locator = locator.String
		evt.CreatedAt = parseTime(createdAt)
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Prune removes jobs last updated before cutoff along with their events.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every journaled job.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job        Job
		status     string
		finalVideo sql.NullString
		errMsg     sql.NullString
		startedAt  string
		updatedAt  string
	)
	if err := row.Scan(&job.ID, &job.Title, &status, &job.LastStage, &job.Step,
		&finalVideo, &errMsg, &startedAt, &updatedAt); err != nil {
		return Job{}, err
	}
	job.Status = Status(status)
	job.FinalVideo = finalVideo.String
	job.ErrorMessage = errMsg.String
	job.StartedAt = parseTime(startedAt)
	job.UpdatedAt = parseTime(updatedAt)
	return job, nil
}

var _ pipeline.Observer = (*Store)(nil)
