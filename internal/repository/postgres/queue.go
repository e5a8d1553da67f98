package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/dispatch"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// QueueRepo implements dispatch.Queue on a Postgres table. Claim uses
// FOR UPDATE SKIP LOCKED, so any number of workers (and processes) can share
// one queue without handing a job out twice.
type QueueRepo struct{ db *sql.DB }

// NewQueueRepo creates a Postgres-backed dispatch queue.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

func (r *QueueRepo) Push(ctx context.Context, job *dispatch.Job, delay time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_queue
			(id, email_id, region, category, unsubscribe_url, attempts, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, 'queued', NOW() + $6 * INTERVAL '1 second', NOW())
	`, job.ID, job.EmailID, job.Region, string(job.Category), job.UnsubscribeURL, delay.Seconds())
	if err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (r *QueueRepo) Claim(ctx context.Context, region string, category domain.EmailCategory) (*dispatch.Job, error) {
	job := &dispatch.Job{}
	err := r.db.QueryRowContext(ctx, `
		UPDATE email_queue
		SET status = 'processing', attempts = attempts + 1, claimed_at = NOW()
		WHERE id = (
			SELECT id FROM email_queue
			WHERE region = $1 AND category = $2 AND status = 'queued' AND scheduled_at <= NOW()
			ORDER BY scheduled_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, email_id, region, category, unsubscribe_url, attempts, scheduled_at
	`, region, string(category)).Scan(
		&job.ID, &job.EmailID, &job.Region, &job.Category,
		&job.UnsubscribeURL, &job.Attempts, &job.ScheduledAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (r *QueueRepo) MarkDone(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM email_queue WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

func (r *QueueRepo) MarkFailed(ctx context.Context, jobID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1
	`, jobID, reason)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *QueueRepo) Cancel(ctx context.Context, emailID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM email_queue WHERE email_id = $1 AND status = 'queued'`, emailID,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *QueueRepo) Reschedule(ctx context.Context, emailID string, delay time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE email_queue
		SET scheduled_at = NOW() + $2 * INTERVAL '1 second', updated_at = NOW()
		WHERE email_id = $1 AND status = 'queued'
	`, emailID, delay.Seconds())
	if err != nil {
		return fmt.Errorf("reschedule job: %w", err)
	}
	return nil
}
