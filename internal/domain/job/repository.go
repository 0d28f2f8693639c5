package job

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, j *ProcessingJob) error

	// GetByID returns the job, or ErrJobNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*ProcessingJob, error)

	// Update persists the current job state (status, counts, applied rules).
	Update(ctx context.Context, j *ProcessingJob) error

	// ListByBatch returns the jobs for one batch, newest first.
	ListByBatch(ctx context.Context, batchID string) ([]*ProcessingJob, error)
}
