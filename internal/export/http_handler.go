package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/AlexTsimba/traffboard-sub001/internal/auth"
	"github.com/AlexTsimba/traffboard-sub001/internal/ingestion"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the error report route on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/imports/{id}/errors", h.handleDownload).Methods(http.MethodGet)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireUserID(r.Context()); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		return
	}
	jobID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	report, err := h.service.ErrorReport(r.Context(), jobID, format)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal server error"
		switch {
		case errors.Is(err, ingestion.ErrJobNotFound):
			status, message = http.StatusNotFound, err.Error()
		case errors.Is(err, auth.ErrForbidden):
			status, message = http.StatusForbidden, err.Error()
		}
		writeJSON(w, status, map[string]string{"error": message})
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(report.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
