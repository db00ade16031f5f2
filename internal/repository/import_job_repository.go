package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/db"
	"github.com/AlexTsimba/traffboard-sub001/internal/domain"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type importJobRepository struct {
	queries *db.Queries
}

// NewImportJobRepository wires a repository for managing import jobs.
func NewImportJobRepository(queries *db.Queries) ImportJobRepository {
	return &importJobRepository{queries: queries}
}

func (r *importJobRepository) Create(ctx context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if strings.TrimSpace(job.UserID) == "" {
		return domain.ImportJob{}, errors.New("import job requires a user")
	}

	jobType := pgtype.Text{}
	if job.Type != nil && *job.Type != "" {
		jobType = pgtype.Text{String: string(*job.Type), Valid: true}
	}
	totalRows := pgtype.Int4{}
	if job.TotalRows != nil {
		totalRows = pgtype.Int4{Int32: clampInt32(*job.TotalRows), Valid: true}
	}
	checksum := pgtype.Text{}
	if job.Checksum != "" {
		checksum = pgtype.Text{String: job.Checksum, Valid: true}
	}

	row, err := r.queries.CreateImportJob(ctx, db.CreateImportJobParams{
		ID:        job.ID,
		UserID:    job.UserID,
		FileName:  job.FileName,
		Type:      jobType,
		TotalRows: totalRows,
		Checksum:  checksum,
		FileSize:  job.FileSize,
	})
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("create import job: %w", err)
	}
	return mapImportJob(row)
}

func (r *importJobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	row, err := r.queries.GetImportJob(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportJob{}, fmt.Errorf("import job %s: %w", id, ErrNotFound)
		}
		return domain.ImportJob{}, fmt.Errorf("get import job: %w", err)
	}
	return mapImportJob(row)
}

func (r *importJobRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.queries.ListImportJobsByUser(ctx, db.ListImportJobsByUserParams{
		UserID:     userID,
		PageLimit:  clampInt32(limit),
		PageOffset: clampInt32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}

	jobs := make([]domain.ImportJob, 0, len(rows))
	for _, row := range rows {
		job, mapErr := mapImportJob(row)
		if mapErr != nil {
			return nil, mapErr
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (r *importJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	affected, err := r.queries.MarkImportJobProcessing(ctx, id)
	if err != nil {
		return fmt.Errorf("mark import job processing: %w", err)
	}
	if affected == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error {
	params, err := progressParams(id, progress)
	if err != nil {
		return err
	}
	affected, err := r.queries.UpdateImportJobProgress(ctx, params)
	if err != nil {
		return fmt.Errorf("update import job progress: %w", err)
	}
	if affected == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, progress domain.JobProgress) error {
	params, err := progressParams(id, progress)
	if err != nil {
		return err
	}
	affected, err := r.queries.MarkImportJobCompleted(ctx, params)
	if err != nil {
		return fmt.Errorf("mark import job completed: %w", err)
	}
	if affected == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func (r *importJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string, progress domain.JobProgress) error {
	params, err := progressParams(id, progress)
	if err != nil {
		return err
	}
	affected, err := r.queries.MarkImportJobFailed(ctx, message, params)
	if err != nil {
		return fmt.Errorf("mark import job failed: %w", err)
	}
	if affected == 0 {
		return ErrJobStatusConflict
	}
	return nil
}

func progressParams(id uuid.UUID, progress domain.JobProgress) (db.UpdateImportJobProgressParams, error) {
	newErrors, err := domain.ValidationErrorsToJSON(progress.NewErrors)
	if err != nil {
		return db.UpdateImportJobProgressParams{}, fmt.Errorf("marshal validation errors: %w", err)
	}
	return db.UpdateImportJobProgressParams{
		ID:            id,
		ProcessedRows: clampInt32(progress.ProcessedRows),
		InsertedRows:  clampInt32(progress.InsertedRows),
		DuplicateRows: clampInt32(progress.DuplicateRows),
		RejectedRows:  clampInt32(progress.RejectedRows),
		ErrorCount:    clampInt32(progress.ErrorCount),
		NewErrors:     newErrors,
	}, nil
}

func mapImportJob(row db.ImportJob) (domain.ImportJob, error) {
	errs, err := domain.ValidationErrorsFromJSON(row.Errors)
	if err != nil {
		return domain.ImportJob{}, fmt.Errorf("decode import job errors: %w", err)
	}

	job := domain.ImportJob{
		ID:            row.ID,
		UserID:        row.UserID,
		FileName:      row.FileName,
		Status:        domain.ImportJobStatus(row.Status),
		ProcessedRows: int(row.ProcessedRows),
		InsertedRows:  int(row.InsertedRows),
		DuplicateRows: int(row.DuplicateRows),
		RejectedRows:  int(row.RejectedRows),
		ErrorCount:    int(row.ErrorCount),
		Errors:        errs,
		FileSize:      row.FileSize,
		CreatedAt:     timeFromPG(row.CreatedAt),
		UpdatedAt:     timeFromPG(row.UpdatedAt),
		StartedAt:     optionalTimeFromPG(row.StartedAt),
		CompletedAt:   optionalTimeFromPG(row.CompletedAt),
	}
	if row.Type.Valid {
		if kind, ok := schema.ParseKind(row.Type.String); ok {
			job.Type = &kind
		}
	}
	if row.TotalRows.Valid {
		total := int(row.TotalRows.Int32)
		job.TotalRows = &total
	}
	if row.ErrorMessage.Valid {
		msg := row.ErrorMessage.String
		job.ErrorMessage = &msg
	}
	if row.Checksum.Valid {
		job.Checksum = row.Checksum.String
	}
	return job, nil
}

func timeFromPG(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time
}

func optionalTimeFromPG(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func clampInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
