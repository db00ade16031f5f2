// Package server assembles the HTTP surface of the import service.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/export"
	"github.com/AlexTsimba/traffboard-sub001/internal/ingestion"
	"github.com/AlexTsimba/traffboard-sub001/internal/metrics"
	"github.com/AlexTsimba/traffboard-sub001/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Options struct {
	Ingestion      *ingestion.Service
	Export         *export.Service
	Metrics        *metrics.Pipeline
	Logger         logrus.FieldLogger
	UploadLimiter  *middleware.UploadLimiter
	UserHeader     string
	AllowedOrigins []string
	Checks         map[string]HealthCheck
}

// NewRouter wires the public routes. Everything under /api requires a caller identity.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging(logger), middleware.Recovery)

	router.HandleFunc("/healthz", healthHandler(opts.Checks)).Methods(http.MethodGet)
	router.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(middleware.Identity(opts.UserHeader))
	if opts.UploadLimiter != nil {
		api.Use(opts.UploadLimiter.Middleware)
	}
	if opts.Ingestion != nil {
		ingestion.NewHTTPHandler(opts.Ingestion).Register(api)
	}
	if opts.Export != nil {
		export.NewHTTPHandler(opts.Export).Register(api)
	}

	userHeader := opts.UserHeader
	if userHeader == "" {
		userHeader = middleware.UserIDHeader
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", userHeader},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
	})
	return corsHandler.Handler(router)
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": report})
	}
}
