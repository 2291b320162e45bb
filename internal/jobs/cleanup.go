package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/invoicer/internal/repository"
)

// Job type constants for cleanup jobs
const (
	JobTypeCleanupFinishedJobs = "cleanup:finished_jobs"
)

// QueueMaintenance is the queue housekeeping jobs are enqueued on.
const QueueMaintenance = "maintenance"

// DefaultJobRetention is how long finished jobs are kept when the payload
// does not say otherwise.
const DefaultJobRetention = 7 * 24 * time.Hour

// CleanupFinishedJobsPayload represents the payload for a job cleanup job
type CleanupFinishedJobsPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

func (p CleanupFinishedJobsPayload) retention() time.Duration {
	if p.RetentionHours <= 0 {
		return DefaultJobRetention
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// EnqueueCleanupFinishedJobs enqueues a job that deletes completed and failed
// jobs older than the retention window. Meant to run on a schedule.
func EnqueueCleanupFinishedJobs(ctx context.Context, q repository.Querier, retention time.Duration) error {
	payloadJSON, err := json.Marshal(CleanupFinishedJobsPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:    JobTypeCleanupFinishedJobs,
		Queue:      QueueMaintenance,
		Payload:    payloadJSON,
		Priority:   10, // Low priority - maintenance task
		MaxRetries: 1,  // Don't retry on failure, will run again next scheduled time
		ScheduledAt: pgtype.Timestamptz{
			Time:  time.Now(),
			Valid: true,
		},
		TimeoutSeconds: 60,
	})

	return err
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	JobsDeleted int64 `json:"jobs_deleted"`
}

// ProcessCleanupJob processes a cleanup job based on its type
func ProcessCleanupJob(ctx context.Context, job *repository.Job, q repository.Querier) (*CleanupResult, error) {
	switch job.JobType {
	case JobTypeCleanupFinishedJobs:
		var payload CleanupFinishedJobsPayload
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}
		return processCleanupFinishedJobs(ctx, q, time.Now().Add(-payload.retention()))
	default:
		return nil, fmt.Errorf("unknown cleanup job type: %s", job.JobType)
	}
}

func processCleanupFinishedJobs(ctx context.Context, q repository.Querier, before time.Time) (*CleanupResult, error) {
	n, err := q.DeleteFinishedJobsBefore(ctx, pgtype.Timestamptz{Time: before, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return &CleanupResult{JobsDeleted: n}, nil
}

// IsCleanupJob checks if a job type is a cleanup job
func IsCleanupJob(jobType string) bool {
	switch jobType {
	case JobTypeCleanupFinishedJobs:
		return true
	}
	return false
}
