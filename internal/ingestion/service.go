package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"
	"github.com/AlexTsimba/traffboard-sub001/internal/cache"
	"github.com/AlexTsimba/traffboard-sub001/internal/domain"
	"github.com/AlexTsimba/traffboard-sub001/internal/metrics"
	"github.com/AlexTsimba/traffboard-sub001/internal/repository"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema/validator"
	"github.com/AlexTsimba/traffboard-sub001/internal/transformations"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

const (
	defaultMaxUploadBytes   = 50 << 20
	defaultBatchSize        = 500
	defaultPreviewRows      = 5
	defaultMaxStoredErrors  = 5000
	defaultProgressInterval = 100
	defaultJobTimeout       = 30 * time.Minute
)

// ProgressStore publishes live row counts for jobs in flight.
type ProgressStore interface {
	Set(ctx context.Context, jobID uuid.UUID, p cache.Progress) error
	Get(ctx context.Context, jobID uuid.UUID) (cache.Progress, bool, error)
	Delete(ctx context.Context, jobID uuid.UUID) error
}

type Option func(*Service)

func WithStagingDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.stagingDir = filepath.Clean(dir)
		}
	}
}

func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

func WithPreviewRows(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.previewRows = n
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithMaxStoredErrors caps the validation errors kept on a job. The error count stays exact.
func WithMaxStoredErrors(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxStoredErrors = n
		}
	}
}

func WithProgressInterval(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.progressInterval = n
		}
	}
}

func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

func WithProgressStore(store ProgressStore) Option {
	return func(s *Service) {
		s.progress = store
	}
}

func WithMetrics(p *metrics.Pipeline) Option {
	return func(s *Service) {
		s.metrics = p
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInlineProcessing makes Upload process the job before returning.
func WithInlineProcessing(inline bool) Option {
	return func(s *Service) {
		s.inline = inline
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service turns uploaded CSV files into import jobs and loads their rows.
type Service struct {
	jobs        repository.ImportJobRepository
	records     repository.RecordRepository
	detector    *schema.Detector
	validator   *validator.RowValidator
	transformer *transformations.Transformer
	progress    ProgressStore
	metrics     *metrics.Pipeline
	logger      logrus.FieldLogger

	stagingDir       string
	batchSize        int
	previewRows      int
	maxUploadBytes   int64
	maxStoredErrors  int
	progressInterval int
	jobTimeout       time.Duration
	inline           bool
	now              func() time.Time

	workers       sync.WaitGroup
	workerCancels sync.Map // map[uuid.UUID]context.CancelFunc
}

func NewService(
	jobs repository.ImportJobRepository,
	records repository.RecordRepository,
	registry *schema.Registry,
	opts ...Option,
) *Service {
	if registry == nil {
		registry = schema.Default()
	}
	service := &Service{
		jobs:             jobs,
		records:          records,
		detector:         schema.NewDetector(registry),
		validator:        validator.NewRowValidator(registry),
		transformer:      transformations.NewTransformer(registry),
		logger:           logrus.StandardLogger(),
		stagingDir:       filepath.Join(os.TempDir(), "traffboard-uploads"),
		batchSize:        defaultBatchSize,
		previewRows:      defaultPreviewRows,
		maxUploadBytes:   defaultMaxUploadBytes,
		maxStoredErrors:  defaultMaxStoredErrors,
		progressInterval: defaultProgressInterval,
		jobTimeout:       defaultJobTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// MaxUploadBytes is the largest upload the service accepts.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// UploadRequest describes one file submitted by a user.
type UploadRequest struct {
	UserID   string
	FileName string
	Data     io.Reader
}

// UploadResult is returned once a job has been created.
type UploadResult struct {
	JobID     uuid.UUID              `json:"jobId"`
	Type      schema.Kind            `json:"type"`
	FileName  string                 `json:"fileName"`
	TotalRows int                    `json:"totalRows"`
	Status    domain.ImportJobStatus `json:"status"`
	Preview   [][]string             `json:"preview"`
}

// Upload detects the record type of the file, records a job and hands the
// rows to a worker. Files whose headers match no schema are refused with a
// *DetectionError before any job exists.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return UploadResult{}, ErrUserRequired
	}
	fileName := filepath.Base(strings.TrimSpace(req.FileName))
	if ext := filepath.Ext(fileName); !strings.EqualFold(ext, ".csv") {
		return UploadResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if req.Data == nil {
		return UploadResult{}, ErrEmptyFile
	}

	payload, err := io.ReadAll(io.LimitReader(req.Data, s.maxUploadBytes+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(payload)) > s.maxUploadBytes {
		return UploadResult{}, ErrFileTooLarge
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return UploadResult{}, ErrEmptyFile
	}

	tbl, err := parseCSV(payload)
	if err != nil {
		return UploadResult{}, err
	}

	detection := s.detector.Detect(tbl.headers)
	s.metrics.Detection(string(detection.Outcome))
	if !detection.Matched() {
		s.logger.WithFields(logrus.Fields{
			"file_name": fileName,
			"columns":   detection.ColumnCount,
			"outcome":   detection.Outcome,
		}).Info("rejected upload with unrecognised headers")
		return UploadResult{}, &DetectionError{Result: detection}
	}
	kind := *detection.Type
	totalRows := len(tbl.rows)

	job, err := s.jobs.Create(ctx, domain.ImportJob{
		ID:        uuid.New(),
		UserID:    userID,
		FileName:  fileName,
		Type:      &kind,
		Status:    domain.ImportJobStatusUploading,
		TotalRows: &totalRows,
		Checksum:  fmt.Sprintf("%016x", xxh3.Hash(payload)),
		FileSize:  int64(len(payload)),
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("create import job: %w", err)
	}

	if err := s.stage(job.ID, payload); err != nil {
		s.failJob(ctx, job, domain.JobProgress{}, err)
		return UploadResult{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"type":       kind,
		"total_rows": totalRows,
		"user_id":    userID,
	}).Info("import job accepted")

	result := UploadResult{
		JobID:     job.ID,
		Type:      kind,
		FileName:  fileName,
		TotalRows: totalRows,
		Status:    job.Status,
		Preview:   preview(tbl, s.previewRows),
	}

	if s.inline {
		s.runInline(job)
		if refreshed, err := s.jobs.GetByID(ctx, job.ID); err == nil {
			result.Status = refreshed.Status
		}
		return result, nil
	}
	s.launchWorker(job)
	return result, nil
}

// Detect classifies the header row of payload without creating a job.
func (s *Service) Detect(payload []byte) (schema.DetectionResult, error) {
	tbl, err := parseCSV(payload)
	if err != nil {
		return schema.DetectionResult{}, err
	}
	return s.detector.Detect(tbl.headers), nil
}

func preview(tbl table, rows int) [][]string {
	limit := rows
	if limit > len(tbl.rows) {
		limit = len(tbl.rows)
	}
	out := make([][]string, 0, limit+1)
	out = append(out, tbl.headers)
	out = append(out, tbl.rows[:limit]...)
	return out
}

// Process runs a staged job to completion. It returns ErrJobNotRunnable when
// another worker already claimed the job. Any other failure marks the job failed.
func (s *Service) Process(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("load import job: %w", err)
	}
	return s.execute(ctx, job)
}

func (s *Service) process(ctx context.Context, job domain.ImportJob, run *jobRun) error {
	if job.Status != domain.ImportJobStatusUploading {
		return ErrJobNotRunnable
	}
	if job.Type == nil {
		return errors.New("import job has no detected type")
	}
	kind := *job.Type

	if err := s.jobs.MarkProcessing(ctx, job.ID); err != nil {
		if errors.Is(err, repository.ErrJobStatusConflict) {
			return ErrJobNotRunnable
		}
		return fmt.Errorf("mark import job processing: %w", err)
	}
	started := s.now()
	log := s.logger.WithFields(logrus.Fields{"job_id": job.ID, "type": kind})
	log.Info("import job processing")

	payload, err := s.readStaged(job.ID)
	if err != nil {
		return err
	}
	tbl, err := parseCSV(payload)
	if err != nil {
		return err
	}

	run.total = len(tbl.rows)
	for idx, row := range tbl.rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		rowNumber := idx + 1
		run.processed++
		if errs := s.validator.Validate(row, tbl.headers, kind, rowNumber); len(errs) > 0 {
			run.reject(errs)
		} else {
			run.pending = append(run.pending, s.transformer.Transform(row, tbl.headers, kind))
		}

		if run.processed%s.batchSize == 0 {
			if err := s.flush(ctx, job.ID, kind, run); err != nil {
				return err
			}
			if err := s.jobs.UpdateProgress(ctx, job.ID, run.snapshot()); err != nil {
				return fmt.Errorf("update import progress: %w", err)
			}
		}
		if run.processed%s.progressInterval == 0 {
			s.publishProgress(ctx, job.ID, domain.ImportJobStatusProcessing, run)
		}
	}

	if err := s.flush(ctx, job.ID, kind, run); err != nil {
		return err
	}
	if err := s.jobs.MarkCompleted(ctx, job.ID, run.snapshot()); err != nil {
		return fmt.Errorf("mark import job completed: %w", err)
	}

	s.discardStaged(job.ID)
	s.clearProgress(job.ID)
	s.metrics.RowsProcessed(kind.String(), metrics.OutcomeRejected, run.rejected)
	s.metrics.JobFinished(kind.String(), string(domain.ImportJobStatusCompleted), s.now().Sub(started))
	log.WithFields(logrus.Fields{
		"processed":  run.processed,
		"inserted":   run.inserted,
		"duplicates": run.duplicates,
		"rejected":   run.rejected,
		"errors":     run.errorCount,
	}).Info("import job completed")
	return nil
}

// flush loads the pending records and resets the batch.
func (s *Service) flush(ctx context.Context, jobID uuid.UUID, kind schema.Kind, run *jobRun) error {
	if len(run.pending) == 0 {
		return nil
	}
	result, err := s.records.Load(ctx, jobID, kind, run.pending)
	if err != nil {
		return fmt.Errorf("load %s batch: %w", kind, err)
	}
	run.inserted += result.Inserted
	run.duplicates += result.Duplicates
	run.pending = run.pending[:0]

	s.metrics.BatchLoaded()
	s.metrics.RowsProcessed(kind.String(), metrics.OutcomeInserted, result.Inserted)
	s.metrics.RowsProcessed(kind.String(), metrics.OutcomeDuplicate, result.Duplicates)
	return nil
}

type jobRun struct {
	total      int
	processed  int
	inserted   int
	duplicates int
	rejected   int
	errorCount int
	errorCap   int
	stored     int
	newErrors  []domain.ValidationError
	pending    []schema.Record
}

func (r *jobRun) reject(errs []domain.ValidationError) {
	r.rejected++
	r.errorCount += len(errs)
	room := r.errorCap - r.stored
	if room <= 0 {
		return
	}
	if len(errs) > room {
		errs = errs[:room]
	}
	r.newErrors = append(r.newErrors, errs...)
	r.stored += len(errs)
}

// snapshot returns the counters and hands over the errors collected since the last call.
func (r *jobRun) snapshot() domain.JobProgress {
	progress := domain.JobProgress{
		ProcessedRows: r.processed,
		InsertedRows:  r.inserted,
		DuplicateRows: r.duplicates,
		RejectedRows:  r.rejected,
		ErrorCount:    r.errorCount,
		NewErrors:     r.newErrors,
	}
	r.newErrors = nil
	return progress
}

func (s *Service) publishProgress(ctx context.Context, jobID uuid.UUID, status domain.ImportJobStatus, run *jobRun) {
	if s.progress == nil {
		return
	}
	err := s.progress.Set(ctx, jobID, cache.Progress{
		Status:        string(status),
		ProcessedRows: run.processed,
		TotalRows:     run.total,
		UpdatedAt:     s.now(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("failed to publish import progress")
	}
}

func (s *Service) clearProgress(jobID uuid.UUID) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Delete(context.Background(), jobID); err != nil {
		s.logger.WithError(err).WithField("job_id", jobID).Warn("failed to clear import progress")
	}
}

// Status returns the polling view of a job owned by the caller.
func (s *Service) Status(ctx context.Context, jobID uuid.UUID) (domain.ImportJobReport, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return domain.ImportJobReport{}, err
	}
	if job.Status.Active() && s.progress != nil {
		live, ok, err := s.progress.Get(ctx, jobID)
		if err != nil {
			s.logger.WithError(err).WithField("job_id", jobID).Warn("failed to read import progress")
		} else if ok && live.ProcessedRows > job.ProcessedRows {
			job.ProcessedRows = live.ProcessedRows
			if job.TotalRows != nil && job.ProcessedRows > *job.TotalRows {
				job.ProcessedRows = *job.TotalRows
			}
		}
	}
	return job.Report(s.now()), nil
}

// GetJob loads a job and checks that the caller in ctx, if any, owns it.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (domain.ImportJob, error) {
	if jobID == uuid.Nil {
		return domain.ImportJob{}, ErrJobNotFound
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ImportJob{}, ErrJobNotFound
		}
		return domain.ImportJob{}, fmt.Errorf("load import job: %w", err)
	}
	if err := auth.EnforceOwnership(ctx, job.UserID); err != nil {
		return domain.ImportJob{}, err
	}
	return job, nil
}

// ListJobs returns a user's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, userID string, limit, offset int) ([]domain.ImportJobReport, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}
	jobs, err := s.jobs.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	now := s.now()
	reports := make([]domain.ImportJobReport, 0, len(jobs))
	for _, job := range jobs {
		reports = append(reports, job.Report(now))
	}
	return reports, nil
}

// Shutdown cancels running workers and waits for them to record their outcome.
func (s *Service) Shutdown(ctx context.Context) error {
	s.workerCancels.Range(func(_, value any) bool {
		if cancel, ok := value.(context.CancelFunc); ok {
			cancel()
		}
		return true
	})
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every launched worker has returned.
func (s *Service) Wait() {
	s.workers.Wait()
}

func (s *Service) jobContext() (context.Context, context.CancelFunc) {
	if s.jobTimeout > 0 {
		return context.WithTimeout(context.Background(), s.jobTimeout)
	}
	return context.WithCancel(context.Background())
}

func (s *Service) launchWorker(job domain.ImportJob) {
	ctx, cancel := s.jobContext()
	s.workerCancels.Store(job.ID, cancel)
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer func() {
			cancel()
			s.workerCancels.Delete(job.ID)
		}()
		_ = s.execute(ctx, job)
	}()
}

func (s *Service) runInline(job domain.ImportJob) {
	ctx, cancel := s.jobContext()
	defer cancel()
	_ = s.execute(ctx, job)
}

// execute processes job and records any failure together with the progress
// made since the last checkpoint.
func (s *Service) execute(ctx context.Context, job domain.ImportJob) (err error) {
	run := &jobRun{errorCap: s.maxStoredErrors}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.WithField("job_id", job.ID).Errorf("panic while processing import job: %v", rec)
			err = fmt.Errorf("panic: %v", rec)
			s.failJob(context.Background(), job, run.snapshot(), err)
		}
	}()
	err = s.process(ctx, job, run)
	switch {
	case err == nil:
	case errors.Is(err, ErrJobNotRunnable):
		s.logger.WithField("job_id", job.ID).Info("import job not runnable, skipping")
	case errors.Is(err, context.Canceled):
		s.failJob(ctx, job, run.snapshot(), errors.New("import interrupted before completion"))
	default:
		s.failJob(ctx, job, run.snapshot(), err)
	}
	return err
}

func (s *Service) failJob(ctx context.Context, job domain.ImportJob, progress domain.JobProgress, err error) {
	if err == nil {
		return
	}
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	s.clearProgress(job.ID)
	kind := "unknown"
	if job.Type != nil {
		kind = job.Type.String()
	}
	s.metrics.JobFinished(kind, string(domain.ImportJobStatusFailed), job.Elapsed(s.now()))

	log := s.logger.WithField("job_id", job.ID)
	if markErr := s.jobs.MarkFailed(ctx, job.ID, truncateError(err), progress); markErr != nil {
		log.WithError(markErr).Errorf("failed to mark import job failed (original error: %v)", err)
		return
	}
	log.WithError(err).Warn("import job failed")
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 512
	msg := err.Error()
	if len(msg) <= maxLen {
		return msg
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
