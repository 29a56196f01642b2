package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chainsocial/scoring-service/internal/pkg/logger"
)

// PostgresQueue implements Queue on the scoring_jobs table. Claims use
// FOR UPDATE SKIP LOCKED so competing workers never block each other.
type PostgresQueue struct {
	db         *sql.DB
	visibility time.Duration
}

// NewPostgresQueue creates a queue with the given visibility timeout.
func NewPostgresQueue(db *sql.DB, visibility time.Duration) *PostgresQueue {
	if visibility == 0 {
		visibility = 5 * time.Minute
	}
	return &PostgresQueue{db: db, visibility: visibility}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, kind Kind, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO scoring_jobs (id, kind, payload, status, attempts, enqueued_at)
		VALUES ($1, $2, $3, 'pending', 0, NOW())`,
		id, string(kind), payload)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s job: %w", kind, err)
	}
	return id, nil
}

// Claim picks the oldest ready jobs: pending ones, plus processing ones
// whose lock is older than the visibility timeout (their worker died).
func (q *PostgresQueue) Claim(ctx context.Context, workerID string, limit int) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, `
		UPDATE scoring_jobs SET
			status = 'processing',
			locked_at = NOW(),
			worker_id = $1,
			attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM scoring_jobs
			WHERE status = 'pending'
			   OR (status = 'processing' AND locked_at < NOW() - ($2 * INTERVAL '1 second'))
			ORDER BY enqueued_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, attempts, enqueued_at`,
		workerID, int(q.visibility.Seconds()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var kind string
		if err := rows.Scan(&j.ID, &kind, &j.Payload, &j.Attempts, &j.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan claimed job: %w", err)
		}
		j.Kind = Kind(kind)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (q *PostgresQueue) Ack(ctx context.Context, jobID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM scoring_jobs WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Fail(ctx context.Context, jobID, reason string, maxAttempts int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE scoring_jobs SET
			status = 'dead', last_error = $2, locked_at = NULL
		WHERE id = $1 AND attempts >= $3`,
		jobID, reason, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to dead-letter job: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Warn("queue: job dead-lettered", "job_id", jobID, "reason", reason)
		return nil
	}

	_, err = q.db.ExecContext(ctx, `
		UPDATE scoring_jobs SET
			status = 'pending', last_error = $2, locked_at = NULL, worker_id = NULL
		WHERE id = $1`,
		jobID, reason)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return nil
}
