package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, service *Service) *mux.Router {
	t.Helper()
	router := mux.NewRouter()
	NewHTTPHandler(service).Register(router)
	return router
}

func multipartUpload(t *testing.T, userID, fileName string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if userID != "" {
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
	}
	return req
}

func TestHandlerUploadCreatesJob(t *testing.T) {
	service := newTestService(t, newStubJobRepo(), newStubRecordRepo())
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "user-1", "players.csv", csvFor(t, schema.KindPlayersData, playerRow("1", "2024-02-01"))))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, schema.KindPlayersData, result.Type)
	assert.Equal(t, 1, result.TotalRows)
	assert.NotEqual(t, uuid.Nil, result.JobID)
}

func TestHandlerUploadReportsDetectionFailure(t *testing.T) {
	service := newTestService(t, newStubJobRepo(), newStubRecordRepo())
	router := newTestRouter(t, service)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "user-1", "odd.csv", []byte("Foo,Bar\n1,2\n")))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body detectionBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, schema.OutcomeNoMatch, body.Outcome)
	assert.Equal(t, 2, body.ColumnCount)
	assert.NotEmpty(t, body.Diagnostics)
}

func TestHandlerUploadErrors(t *testing.T) {
	service := newTestService(t, newStubJobRepo(), newStubRecordRepo())
	router := newTestRouter(t, service)
	payload := csvFor(t, schema.KindTrafficReport, trafficRow("2024-01-15", "3"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "", "traffic.csv", payload))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "user-1", "traffic.txt", payload))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/imports", bytes.NewReader(payload))
	req = req.WithContext(auth.ContextWithUserID(context.Background(), "user-1"))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerStatus(t *testing.T) {
	service := newTestService(t, newStubJobRepo(), newStubRecordRepo())
	router := newTestRouter(t, service)
	result := upload(t, service, "traffic.csv", csvFor(t, schema.KindTrafficReport, trafficRow("2024-01-15", "3")))

	get := func(userID, id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/imports/"+id, nil)
		req = req.WithContext(auth.ContextWithUserID(req.Context(), userID))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := get("user-1", result.JobID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "completed", report["status"])
	assert.Equal(t, 100.0, report["progress"])
	assert.Equal(t, 1.0, report["insertedRows"])

	assert.Equal(t, http.StatusForbidden, get("user-2", result.JobID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get("user-1", uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("user-1", "not-a-uuid").Code)
}

func TestHandlerList(t *testing.T) {
	service := newTestService(t, newStubJobRepo(), newStubRecordRepo())
	router := newTestRouter(t, service)
	upload(t, service, "traffic.csv", csvFor(t, schema.KindTrafficReport, trafficRow("2024-01-15", "3")))

	req := httptest.NewRequest(http.MethodGet, "/api/imports?limit=5", nil)
	req = req.WithContext(auth.ContextWithUserID(req.Context(), "user-1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Jobs []map[string]any `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Jobs, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/imports?limit=-1", nil)
	req = req.WithContext(auth.ContextWithUserID(req.Context(), "user-1"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
