package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"
	"github.com/AlexTsimba/traffboard-sub001/internal/schema"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// multipart overhead allowed on top of the file size cap
const formOverhead = 1 << 20

// Handler exposes uploads and job status over HTTP.
type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the import routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/imports", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/api/imports", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/imports/{id}", h.status).Methods(http.MethodGet)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxUploadBytes()+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, ErrFileTooLarge)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid form data: %v", err)})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("file required: %v", err)})
		return
	}
	defer file.Close()

	result, err := h.service.Upload(r.Context(), UploadRequest{
		UserID:   userID,
		FileName: header.Filename,
		Data:     file,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	jobs, err := h.service.ListJobs(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid job id"})
		return
	}
	report, err := h.service.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return value, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type detectionBody struct {
	Error       string             `json:"error"`
	Outcome     schema.Outcome     `json:"outcome"`
	ColumnCount int                `json:"columnCount"`
	Headers     []string           `json:"headers"`
	Candidates  []schema.Candidate `json:"candidates"`
	Diagnostics []string           `json:"diagnostics"`
}

func writeError(w http.ResponseWriter, err error) {
	var detection *DetectionError
	if errors.As(err, &detection) {
		writeJSON(w, http.StatusUnprocessableEntity, detectionBody{
			Error:       "could not detect file type",
			Outcome:     detection.Result.Outcome,
			ColumnCount: detection.Result.ColumnCount,
			Headers:     detection.Result.Headers,
			Candidates:  detection.Result.Candidates,
			Diagnostics: detection.Result.Diagnostics,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, ErrUserRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrJobNotRunnable):
		status = http.StatusConflict
	case errors.Is(err, ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrMalformedFile):
		status = http.StatusBadRequest
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(w, status, errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
