package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const jobColumns = `id, job_type, queue, payload, status, priority, retry_count, max_retries, worker_id,
    error_message, scheduled_at, started_at, completed_at, timeout_seconds, created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }, i *Job) error {
	return row.Scan(
		&i.ID,
		&i.JobType,
		&i.Queue,
		&i.Payload,
		&i.Status,
		&i.Priority,
		&i.RetryCount,
		&i.MaxRetries,
		&i.WorkerID,
		&i.ErrorMessage,
		&i.ScheduledAt,
		&i.StartedAt,
		&i.CompletedAt,
		&i.TimeoutSeconds,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
}

const enqueueJob = `-- name: EnqueueJob :one
INSERT INTO jobs (job_type, queue, payload, priority, max_retries, scheduled_at, timeout_seconds)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	JobType        string             `json:"job_type"`
	Queue          string             `json:"queue"`
	Payload        []byte             `json:"payload"`
	Priority       int32              `json:"priority"`
	MaxRetries     int32              `json:"max_retries"`
	ScheduledAt    pgtype.Timestamptz `json:"scheduled_at"`
	TimeoutSeconds int32              `json:"timeout_seconds"`
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	row := q.db.QueryRow(ctx, enqueueJob,
		arg.JobType,
		arg.Queue,
		arg.Payload,
		arg.Priority,
		arg.MaxRetries,
		arg.ScheduledAt,
		arg.TimeoutSeconds,
	)
	var i Job
	err := scanJob(row, &i)
	return i, err
}

const claimNextJob = `-- name: ClaimNextJob :one
UPDATE jobs
SET status = 'processing',
    worker_id = $1,
    started_at = NOW(),
    updated_at = NOW()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending'
      AND scheduled_at <= NOW()
      AND ($2::text = '' OR queue = $2::text)
    ORDER BY priority DESC, scheduled_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns

type ClaimNextJobParams struct {
	WorkerID pgtype.Text `json:"worker_id"`
	Queue    string      `json:"queue"`
}

func (q *Queries) ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error) {
	row := q.db.QueryRow(ctx, claimNextJob, arg.WorkerID, arg.Queue)
	var i Job
	err := scanJob(row, &i)
	return i, err
}

const completeJob = `-- name: CompleteJob :exec
UPDATE jobs
SET status = 'completed',
    completed_at = NOW(),
    updated_at = NOW()
WHERE id = $1`

func (q *Queries) CompleteJob(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, completeJob, id)
	return err
}

const failJob = `-- name: FailJob :one
UPDATE jobs
SET retry_count = retry_count + 1,
    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
    scheduled_at = CASE WHEN retry_count + 1 >= max_retries THEN scheduled_at
                        ELSE NOW() + (POWER(2, retry_count + 1) * INTERVAL '1 second') END,
    error_message = $2,
    worker_id = NULL,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + jobColumns

type FailJobParams struct {
	ID           pgtype.UUID `json:"id"`
	ErrorMessage pgtype.Text `json:"error_message"`
}

func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) (Job, error) {
	row := q.db.QueryRow(ctx, failJob, arg.ID, arg.ErrorMessage)
	var i Job
	err := scanJob(row, &i)
	return i, err
}

const deleteFinishedJobsBefore = `-- name: DeleteFinishedJobsBefore :execrows
DELETE FROM jobs
WHERE status IN ('completed', 'failed')
  AND updated_at < $1`

func (q *Queries) DeleteFinishedJobsBefore(ctx context.Context, before pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, deleteFinishedJobsBefore, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
