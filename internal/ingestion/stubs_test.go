package ingestion

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/cache"
	"github.com/AlexTsimba/traffboard-sub001/internal/domain"
	"github.com/AlexTsimba/traffboard-sub001/internal/repository"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
)

type stubJobRepo struct {
	mu    sync.Mutex
	jobs  map[uuid.UUID]domain.ImportJob
	order []uuid.UUID
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: make(map[uuid.UUID]domain.ImportJob)}
}

func (r *stubJobRepo) Create(_ context.Context, job domain.ImportJob) (domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	return job, nil
}

func (r *stubJobRepo) GetByID(_ context.Context, id uuid.UUID) (domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return domain.ImportJob{}, repository.ErrNotFound
	}
	job.Errors = append([]domain.ValidationError(nil), job.Errors...)
	return job, nil
}

func (r *stubJobRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.ImportJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ImportJob
	for i := len(r.order) - 1; i >= 0; i-- {
		job := r.jobs[r.order[i]]
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubJobRepo) transition(id uuid.UUID, allowed func(domain.ImportJobStatus) bool, update func(*domain.ImportJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok || !allowed(job.Status) {
		return repository.ErrJobStatusConflict
	}
	update(&job)
	job.UpdatedAt = time.Now().UTC()
	r.jobs[id] = job
	return nil
}

func is(statuses ...domain.ImportJobStatus) func(domain.ImportJobStatus) bool {
	return func(s domain.ImportJobStatus) bool {
		for _, candidate := range statuses {
			if s == candidate {
				return true
			}
		}
		return false
	}
}

func applyProgress(job *domain.ImportJob, p domain.JobProgress) {
	if p.ProcessedRows > job.ProcessedRows {
		job.ProcessedRows = p.ProcessedRows
	}
	job.InsertedRows = max(job.InsertedRows, p.InsertedRows)
	job.DuplicateRows = max(job.DuplicateRows, p.DuplicateRows)
	job.RejectedRows = max(job.RejectedRows, p.RejectedRows)
	job.ErrorCount = max(job.ErrorCount, p.ErrorCount)
	job.Errors = append(job.Errors, p.NewErrors...)
}

func (r *stubJobRepo) MarkProcessing(_ context.Context, id uuid.UUID) error {
	return r.transition(id, is(domain.ImportJobStatusUploading), func(job *domain.ImportJob) {
		now := time.Now().UTC()
		job.Status = domain.ImportJobStatusProcessing
		job.StartedAt = &now
	})
}

func (r *stubJobRepo) UpdateProgress(_ context.Context, id uuid.UUID, p domain.JobProgress) error {
	return r.transition(id, is(domain.ImportJobStatusProcessing), func(job *domain.ImportJob) {
		applyProgress(job, p)
	})
}

func (r *stubJobRepo) MarkCompleted(_ context.Context, id uuid.UUID, p domain.JobProgress) error {
	return r.transition(id, is(domain.ImportJobStatusProcessing), func(job *domain.ImportJob) {
		now := time.Now().UTC()
		applyProgress(job, p)
		job.Status = domain.ImportJobStatusCompleted
		job.CompletedAt = &now
	})
}

func (r *stubJobRepo) MarkFailed(_ context.Context, id uuid.UUID, message string, p domain.JobProgress) error {
	return r.transition(id, is(domain.ImportJobStatusUploading, domain.ImportJobStatusProcessing), func(job *domain.ImportJob) {
		now := time.Now().UTC()
		applyProgress(job, p)
		job.Status = domain.ImportJobStatusFailed
		job.ErrorMessage = &message
		job.CompletedAt = &now
	})
}

func (r *stubJobRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// stubRecordRepo keeps natural keys in memory and skips records it has seen.
type stubRecordRepo struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	batches []int
	err     error
}

func newStubRecordRepo() *stubRecordRepo {
	return &stubRecordRepo{keys: make(map[string]struct{})}
}

func (r *stubRecordRepo) Load(_ context.Context, _ uuid.UUID, kind schema.Kind, records []schema.Record) (repository.LoadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return repository.LoadResult{}, r.err
	}
	def, ok := schema.Default().Definition(kind)
	if !ok {
		return repository.LoadResult{}, fmt.Errorf("unknown kind %s", kind)
	}
	var result repository.LoadResult
	for _, record := range records {
		key := string(kind)
		for _, name := range def.NaturalKey {
			key += fmt.Sprintf("|%v", record.Get(name))
		}
		if _, seen := r.keys[key]; seen {
			result.Duplicates++
			continue
		}
		r.keys[key] = struct{}{}
		result.Inserted++
	}
	r.batches = append(r.batches, len(records))
	return result, nil
}

func (r *stubRecordRepo) Count(_ context.Context, _ schema.Kind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.keys)), nil
}

type stubProgress struct {
	mu      sync.Mutex
	entries map[uuid.UUID]cache.Progress
	sets    int
}

func newStubProgress() *stubProgress {
	return &stubProgress{entries: make(map[uuid.UUID]cache.Progress)}
}

func (p *stubProgress) Set(_ context.Context, id uuid.UUID, value cache.Progress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[id] = value
	p.sets++
	return nil
}

func (p *stubProgress) Get(_ context.Context, id uuid.UUID) (cache.Progress, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok := p.entries[id]
	return value, ok, nil
}

func (p *stubProgress) Delete(_ context.Context, id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, id)
	return nil
}

// csvFor renders a file of kind using the first declared spelling of every
// column. Rows are keyed by field name; missing fields are left blank.
func csvFor(t testing.TB, kind schema.Kind, rows ...map[string]string) []byte {
	t.Helper()
	def, ok := schema.Default().Definition(kind)
	if !ok {
		t.Fatalf("unknown kind %s", kind)
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := make([]string, len(def.Fields))
	for i, field := range def.Fields {
		header[i] = field.Variants[0]
	}
	if err := w.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for _, row := range rows {
		record := make([]string, len(def.Fields))
		for i, field := range def.Fields {
			record[i] = row[field.Name]
		}
		if err := w.Write(record); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	w.Flush()
	return buf.Bytes()
}

func trafficRow(day string, campaign string) map[string]string {
	return map[string]string{
		"date":              day,
		"foreignBrandId":    "1",
		"foreignPartnerId":  "2",
		"foreignCampaignId": campaign,
		"country":           "DE",
		"allClicks":         "10",
		"uniqueClicks":      "8",
		"cr":                "0.25",
	}
}

func playerRow(playerID, day string) map[string]string {
	return map[string]string{
		"playerId":      playerID,
		"signUpDate":    day,
		"playerCountry": "DE",
		"partnersEmail": "partner@example.com",
		"date":          day,
		"currency":      "EUR",
		"ftdCount":      "1",
		"ftdSum":        "20.50",
		"prequalified":  "1",
	}
}
