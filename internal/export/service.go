// Package export renders the validation errors of an import job as a
// downloadable report.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AlexTsimba/traffboard-sub001/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// Format selects the report encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for formats other than csv and xlsx.
var ErrUnsupportedFormat = errors.New("unsupported report format")

// ParseFormat accepts "csv" (the default for an empty value) and "xlsx".
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(FormatCSV):
		return FormatCSV, nil
	case string(FormatXLSX):
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, value)
}

func (f Format) contentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// JobSource resolves a job for the caller in ctx.
type JobSource interface {
	GetJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error)
}

// Report is a rendered error report.
type Report struct {
	FileName    string
	ContentType string
	Body        []byte
}

var reportHeader = []string{"Row", "Column", "Field", "Value", "Message", "Severity"}

const (
	errorsSheet  = "Errors"
	summarySheet = "Summary"
)

type Service struct {
	jobs   JobSource
	logger logrus.FieldLogger
}

func NewService(jobs JobSource, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ErrorReport renders the stored validation errors of a job.
func (s *Service) ErrorReport(ctx context.Context, jobID uuid.UUID, format Format) (Report, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Report{}, err
	}

	var body []byte
	switch format {
	case FormatCSV:
		body, err = renderCSV(job.Errors)
	case FormatXLSX:
		body, err = renderXLSX(job)
	default:
		return Report{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Report{}, fmt.Errorf("render %s report: %w", format, err)
	}

	s.logger.WithFields(logrus.Fields{
		"job_id": jobID,
		"format": format,
		"errors": len(job.Errors),
	}).Debug("rendered error report")

	return Report{
		FileName:    reportFileName(job.FileName, format),
		ContentType: format.contentType(),
		Body:        body,
	}, nil
}

func reportFileName(upload string, format Format) string {
	base := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	if base == "" || base == "." {
		base = "import"
	}
	return base + "-errors." + string(format)
}

func errorRow(e domain.ValidationError) []string {
	return []string{strconv.Itoa(e.Row), e.Column, e.Field, e.Value, e.Message, string(e.Severity)}
}

func renderCSV(errs []domain.ValidationError) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(reportHeader); err != nil {
		return nil, err
	}
	for _, e := range errs {
		if err := writer.Write(errorRow(e)); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderXLSX(job domain.ImportJob) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", errorsSheet); err != nil {
		return nil, err
	}
	stream, err := f.NewStreamWriter(errorsSheet)
	if err != nil {
		return nil, err
	}
	header := make([]interface{}, len(reportHeader))
	for i, h := range reportHeader {
		header[i] = h
	}
	if err := stream.SetRow("A1", header); err != nil {
		return nil, err
	}
	for i, e := range job.Errors {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{e.Row, e.Column, e.Field, e.Value, e.Message, string(e.Severity)}
		if err := stream.SetRow(cell, row); err != nil {
			return nil, err
		}
	}
	if err := stream.Flush(); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	kind := ""
	if job.Type != nil {
		kind = job.Type.String()
	}
	summary := [][]interface{}{
		{"File", job.FileName},
		{"Type", kind},
		{"Status", string(job.Status)},
		{"Processed rows", job.ProcessedRows},
		{"Inserted rows", job.InsertedRows},
		{"Duplicate rows", job.DuplicateRows},
		{"Rejected rows", job.RejectedRows},
		{"Errors", job.ErrorCount},
		{"Errors listed", len(job.Errors)},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
