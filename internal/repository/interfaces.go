package repository

import (
	"context"
	"errors"

	"github.com/AlexTsimba/traffboard-sub001/internal/domain"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrJobStatusConflict indicates that a job cannot transition to the requested state.
	ErrJobStatusConflict = errors.New("import job status conflict")
)

// ImportJobRepository persists upload jobs and their lifecycle transitions.
type ImportJobRepository interface {
	Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.ImportJob, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error
	MarkCompleted(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string, progress domain.JobProgress) error
}

// LoadResult reports how a batch of records landed in storage.
type LoadResult struct {
	Inserted   int
	Duplicates int
}

// RecordRepository bulk loads typed records, skipping rows whose natural key already exists.
type RecordRepository interface {
	Load(ctx context.Context, jobID uuid.UUID, kind schema.Kind, records []schema.Record) (LoadResult, error)
	Count(ctx context.Context, kind schema.Kind) (int64, error)
}
