package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ImportJob is a row of import_jobs.
type ImportJob struct {
	ID            uuid.UUID
	UserID        string
	FileName      string
	Type          pgtype.Text
	Status        string
	TotalRows     pgtype.Int4
	ProcessedRows int32
	InsertedRows  int32
	DuplicateRows int32
	RejectedRows  int32
	ErrorCount    int32
	Errors        []byte
	ErrorMessage  pgtype.Text
	Checksum      pgtype.Text
	FileSize      int64
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
	StartedAt     pgtype.Timestamptz
	CompletedAt   pgtype.Timestamptz
}

const importJobColumns = `id, user_id, file_name, type, status, total_rows, processed_rows,
  inserted_rows, duplicate_rows, rejected_rows, error_count, errors, error_message,
  checksum, file_size, created_at, updated_at, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImportJob(row rowScanner) (ImportJob, error) {
	var i ImportJob
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.FileName,
		&i.Type,
		&i.Status,
		&i.TotalRows,
		&i.ProcessedRows,
		&i.InsertedRows,
		&i.DuplicateRows,
		&i.RejectedRows,
		&i.ErrorCount,
		&i.Errors,
		&i.ErrorMessage,
		&i.Checksum,
		&i.FileSize,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.StartedAt,
		&i.CompletedAt,
	)
	return i, err
}

const createImportJob = `
INSERT INTO import_jobs (id, user_id, file_name, type, status, total_rows, checksum, file_size)
VALUES ($1, $2, $3, $4, 'uploading', $5, $6, $7)
RETURNING ` + importJobColumns

type CreateImportJobParams struct {
	ID        uuid.UUID
	UserID    string
	FileName  string
	Type      pgtype.Text
	TotalRows pgtype.Int4
	Checksum  pgtype.Text
	FileSize  int64
}

func (q *Queries) CreateImportJob(ctx context.Context, arg CreateImportJobParams) (ImportJob, error) {
	row := q.db.QueryRow(ctx, createImportJob,
		arg.ID,
		arg.UserID,
		arg.FileName,
		arg.Type,
		arg.TotalRows,
		arg.Checksum,
		arg.FileSize,
	)
	return scanImportJob(row)
}

const getImportJob = `SELECT ` + importJobColumns + ` FROM import_jobs WHERE id = $1`

func (q *Queries) GetImportJob(ctx context.Context, id uuid.UUID) (ImportJob, error) {
	return scanImportJob(q.db.QueryRow(ctx, getImportJob, id))
}

const listImportJobsByUser = `
SELECT ` + importJobColumns + `
FROM import_jobs
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3`

type ListImportJobsByUserParams struct {
	UserID     string
	PageLimit  int32
	PageOffset int32
}

func (q *Queries) ListImportJobsByUser(ctx context.Context, arg ListImportJobsByUserParams) ([]ImportJob, error) {
	rows, err := q.db.Query(ctx, listImportJobsByUser, arg.UserID, arg.PageLimit, arg.PageOffset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ImportJob
	for rows.Next() {
		i, err := scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markImportJobProcessing = `
UPDATE import_jobs
SET status = 'processing', started_at = NOW(), updated_at = NOW()
WHERE id = $1 AND status = 'uploading'`

func (q *Queries) MarkImportJobProcessing(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markImportJobProcessing, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateImportJobProgress = `
UPDATE import_jobs
SET processed_rows = GREATEST(processed_rows, $2),
    inserted_rows = $3,
    duplicate_rows = $4,
    rejected_rows = $5,
    error_count = $6,
    errors = errors || $7::jsonb,
    updated_at = NOW()
WHERE id = $1 AND status = 'processing'`

type UpdateImportJobProgressParams struct {
	ID            uuid.UUID
	ProcessedRows int32
	InsertedRows  int32
	DuplicateRows int32
	RejectedRows  int32
	ErrorCount    int32
	NewErrors     []byte
}

func (q *Queries) UpdateImportJobProgress(ctx context.Context, arg UpdateImportJobProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateImportJobProgress,
		arg.ID,
		arg.ProcessedRows,
		arg.InsertedRows,
		arg.DuplicateRows,
		arg.RejectedRows,
		arg.ErrorCount,
		arg.NewErrors,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markImportJobCompleted = `
UPDATE import_jobs
SET status = 'completed',
    processed_rows = GREATEST(processed_rows, $2),
    inserted_rows = $3,
    duplicate_rows = $4,
    rejected_rows = $5,
    error_count = $6,
    errors = errors || $7::jsonb,
    completed_at = NOW(),
    updated_at = NOW()
WHERE id = $1 AND status = 'processing'`

func (q *Queries) MarkImportJobCompleted(ctx context.Context, arg UpdateImportJobProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, markImportJobCompleted,
		arg.ID,
		arg.ProcessedRows,
		arg.InsertedRows,
		arg.DuplicateRows,
		arg.RejectedRows,
		arg.ErrorCount,
		arg.NewErrors,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markImportJobFailed = `
UPDATE import_jobs
SET status = 'failed',
    error_message = $2,
    processed_rows = GREATEST(processed_rows, $3),
    inserted_rows = GREATEST(inserted_rows, $4),
    duplicate_rows = GREATEST(duplicate_rows, $5),
    rejected_rows = GREATEST(rejected_rows, $6),
    error_count = GREATEST(error_count, $7),
    errors = errors || $8::jsonb,
    completed_at = NOW(),
    updated_at = NOW()
WHERE id = $1 AND status IN ('uploading', 'processing')`

// MarkImportJobFailed records the failure along with whatever progress the
// run accumulated since its last checkpoint.
func (q *Queries) MarkImportJobFailed(ctx context.Context, message string, arg UpdateImportJobProgressParams) (int64, error) {
	result, err := q.db.Exec(ctx, markImportJobFailed,
		arg.ID,
		message,
		arg.ProcessedRows,
		arg.InsertedRows,
		arg.DuplicateRows,
		arg.RejectedRows,
		arg.ErrorCount,
		arg.NewErrors,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
