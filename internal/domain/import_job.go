package domain

import (
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
)

// ImportJobStatus captures lifecycle state for an upload.
type ImportJobStatus string

const (
	ImportJobStatusUploading  ImportJobStatus = "uploading"
	ImportJobStatusProcessing ImportJobStatus = "processing"
	ImportJobStatusCompleted  ImportJobStatus = "completed"
	ImportJobStatusFailed     ImportJobStatus = "failed"
)

// Active reports whether the job may still make progress.
func (s ImportJobStatus) Active() bool {
	return s == ImportJobStatusUploading || s == ImportJobStatusProcessing
}

// Terminal reports whether the job reached completed or failed.
func (s ImportJobStatus) Terminal() bool {
	return s == ImportJobStatusCompleted || s == ImportJobStatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle forward-only.
func (s ImportJobStatus) CanTransitionTo(next ImportJobStatus) bool {
	switch s {
	case ImportJobStatusUploading:
		return next == ImportJobStatusProcessing || next == ImportJobStatusFailed
	case ImportJobStatusProcessing:
		return next == ImportJobStatusCompleted || next == ImportJobStatusFailed
	}
	return false
}

// ImportJob mirrors the persisted record tracking one upload.
type ImportJob struct {
	ID            uuid.UUID         `json:"id"`
	UserID        string            `json:"userId"`
	FileName      string            `json:"fileName"`
	Type          *schema.Kind      `json:"type,omitempty"`
	Status        ImportJobStatus   `json:"status"`
	TotalRows     *int              `json:"totalRows,omitempty"`
	ProcessedRows int               `json:"processedRows"`
	InsertedRows  int               `json:"insertedRows"`
	DuplicateRows int               `json:"duplicateRows"`
	RejectedRows  int               `json:"rejectedRows"`
	ErrorCount    int               `json:"errorCount"`
	Errors        []ValidationError `json:"errors"`
	ErrorMessage  *string           `json:"errorMessage,omitempty"`
	Checksum      string            `json:"checksum,omitempty"`
	FileSize      int64             `json:"fileSize"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

// JobProgress is the counter snapshot written at each batch boundary.
// NewErrors are appended to the stored list.
type JobProgress struct {
	ProcessedRows int
	InsertedRows  int
	DuplicateRows int
	RejectedRows  int
	ErrorCount    int
	NewErrors     []ValidationError
}

// Progress returns processed/total as a percentage in [0, 100].
func (j ImportJob) Progress() float64 {
	if j.TotalRows == nil {
		return 0
	}
	total := *j.TotalRows
	if total <= 0 {
		if j.Status == ImportJobStatusCompleted {
			return 100
		}
		return 0
	}
	pct := float64(j.ProcessedRows) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Elapsed measures processing time, from start (or creation) to completion or now.
func (j ImportJob) Elapsed(now time.Time) time.Duration {
	start := j.CreatedAt
	if j.StartedAt != nil {
		start = *j.StartedAt
	}
	if start.IsZero() {
		return 0
	}
	end := now
	if j.CompletedAt != nil {
		end = *j.CompletedAt
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

// ImportJobReport is the polling view of a job.
type ImportJobReport struct {
	ID             uuid.UUID         `json:"id"`
	Status         ImportJobStatus   `json:"status"`
	FileName       string            `json:"fileName"`
	Type           *schema.Kind      `json:"type"`
	TotalRows      *int              `json:"totalRows"`
	ProcessedRows  int               `json:"processedRows"`
	InsertedRows   int               `json:"insertedRows"`
	DuplicateRows  int               `json:"duplicateRows"`
	RejectedRows   int               `json:"rejectedRows"`
	Progress       float64           `json:"progress"`
	Active         bool              `json:"active"`
	ErrorCount     int               `json:"errorCount"`
	Errors         []ValidationError `json:"errors"`
	ErrorMessage   *string           `json:"errorMessage,omitempty"`
	ElapsedSeconds float64           `json:"elapsedSeconds"`
	UserID         string            `json:"userId"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Report builds the polling view of the job at now.
func (j ImportJob) Report(now time.Time) ImportJobReport {
	errs := j.Errors
	if errs == nil {
		errs = []ValidationError{}
	}
	return ImportJobReport{
		ID:             j.ID,
		Status:         j.Status,
		FileName:       j.FileName,
		Type:           j.Type,
		TotalRows:      j.TotalRows,
		ProcessedRows:  j.ProcessedRows,
		InsertedRows:   j.InsertedRows,
		DuplicateRows:  j.DuplicateRows,
		RejectedRows:   j.RejectedRows,
		Progress:       j.Progress(),
		Active:         j.Status.Active(),
		ErrorCount:     j.ErrorCount,
		Errors:         errs,
		ErrorMessage:   j.ErrorMessage,
		ElapsedSeconds: j.Elapsed(now).Seconds(),
		UserID:         j.UserID,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}
