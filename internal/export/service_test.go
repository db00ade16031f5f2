package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"
	"github.com/AlexTsimba/traffboard-sub001/internal/domain"
	"github.com/AlexTsimba/traffboard-sub001/internal/ingestion"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubJobs struct {
	job domain.ImportJob
}

func (s stubJobs) GetJob(ctx context.Context, id uuid.UUID) (domain.ImportJob, error) {
	if id != s.job.ID {
		return domain.ImportJob{}, ingestion.ErrJobNotFound
	}
	if err := auth.EnforceOwnership(ctx, s.job.UserID); err != nil {
		return domain.ImportJob{}, err
	}
	return s.job, nil
}

func sampleJob() domain.ImportJob {
	kind := schema.KindTrafficReport
	return domain.ImportJob{
		ID:            uuid.New(),
		UserID:        "owner",
		FileName:      "january.csv",
		Type:          &kind,
		Status:        domain.ImportJobStatusCompleted,
		ProcessedRows: 10,
		InsertedRows:  8,
		RejectedRows:  2,
		ErrorCount:    2,
		Errors: []domain.ValidationError{
			{Row: 3, Column: "Date", Field: "date", Value: "31/31/2024", Message: "Invalid date format", Severity: domain.SeverityError},
			{Row: 7, Column: "Brand ID", Field: "foreignBrandId", Value: "", Message: `Required field "Brand ID" is empty`, Severity: domain.SeverityError},
		},
	}
}

func newTestService(job domain.ImportJob) *Service {
	logger, _ := test.NewNullLogger()
	return NewService(stubJobs{job: job}, logger)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestCSVErrorReport(t *testing.T) {
	job := sampleJob()
	report, err := newTestService(job).ErrorReport(context.Background(), job.ID, FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "january-errors.csv", report.FileName)
	rows, err := csv.NewReader(bytes.NewReader(report.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, reportHeader, rows[0])
	assert.Equal(t, []string{"3", "Date", "date", "31/31/2024", "Invalid date format", "error"}, rows[1])
}

func TestXLSXErrorReport(t *testing.T) {
	job := sampleJob()
	report, err := newTestService(job).ErrorReport(context.Background(), job.ID, FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "january-errors.xlsx", report.FileName)

	f, err := excelize.OpenReader(bytes.NewReader(report.Body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(errorsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "foreignBrandId", rows[2][2])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"Inserted rows", "8"}, summary[4])
}

func TestErrorReportEnforcesOwnership(t *testing.T) {
	job := sampleJob()
	ctx := auth.ContextWithUserID(context.Background(), "someone-else")
	_, err := newTestService(job).ErrorReport(ctx, job.ID, FormatCSV)
	assert.ErrorIs(t, err, auth.ErrForbidden)
}

func TestHandleDownload(t *testing.T) {
	job := sampleJob()
	router := mux.NewRouter()
	NewHTTPHandler(newTestService(job)).Register(router)

	request := func(userID, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if userID != "" {
			req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := request("owner", "/api/imports/"+job.ID.String()+"/errors?format=xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "january-errors.xlsx")

	assert.Equal(t, http.StatusUnauthorized, request("", "/api/imports/"+job.ID.String()+"/errors").Code)
	assert.Equal(t, http.StatusForbidden, request("other", "/api/imports/"+job.ID.String()+"/errors").Code)
	assert.Equal(t, http.StatusNotFound, request("owner", "/api/imports/"+uuid.NewString()+"/errors").Code)
	assert.Equal(t, http.StatusBadRequest, request("owner", "/api/imports/"+job.ID.String()+"/errors?format=pdf").Code)
}
