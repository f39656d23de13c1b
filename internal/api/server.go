// Package api exposes the HTTP interface for the crawl sync service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seekforge/crawlsync/internal/ingest"
	"github.com/seekforge/crawlsync/internal/lifecycle"
	"github.com/seekforge/crawlsync/internal/metrics"
	"github.com/seekforge/crawlsync/internal/store"
)

// Config controls the HTTP surface.
type Config struct {
	// APIKey guards all routes when non-empty.
	APIKey string
	// RequestTimeout bounds handler execution; zero means 60s.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the lifecycle manager.
type Server struct {
	router  chi.Router
	manager *lifecycle.Manager
	clock   lifecycle.Clock
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(manager *lifecycle.Manager, clock lifecycle.Clock, logger *zap.Logger, cfg Config) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager: manager,
		clock:   clock,
		logger:  logger,
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(timeout))
	r.Use(metricsMiddleware)
	if cfg.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Get("/due", s.listDue)
			r.Route("/{scrape_id}", func(r chi.Router) {
				r.Get("/", s.getCrawl)
				r.Patch("/status", s.updateStatus)
				r.Patch("/schedule", s.updateSchedule)
			})
		})
		r.Route("/datasets/{dataset_id}/crawl", func(r chi.Router) {
			r.Get("/", s.getDatasetCrawl)
			r.Put("/", s.reconfigure)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitRequest struct {
	DatasetID uuid.UUID      `json:"dataset_id"`
	Options   ingest.Options `json:"crawl_options"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.DatasetID == uuid.Nil {
		s.writeError(w, http.StatusBadRequest, "dataset_id required")
		return
	}
	jobID, err := s.manager.SubmitCrawl(r.Context(), req.Options, req.DatasetID)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	resp := map[string]any{"dataset_id": req.DatasetID}
	if jobID.Valid {
		resp["scrape_id"] = jobID.UUID
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) listDue(w http.ResponseWriter, r *http.Request) {
	at := s.clock.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid at timestamp")
			return
		}
		at = parsed
	}
	due, err := s.manager.ListDue(r.Context(), at)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]crawlView, 0, len(due))
	for _, req := range due {
		views = append(views, viewOf(req))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"crawls": views})
}

func (s *Server) getCrawl(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "scrape_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scrape_id")
		return
	}
	req, err := s.manager.GetByJobID(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "crawl request not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(req))
}

type statusRequest struct {
	Status ingest.CrawlStatus `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "scrape_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scrape_id")
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validStatus(req.Status) {
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if err := s.manager.SetStatus(r.Context(), jobID, req.Status); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"scrape_id": jobID.String(),
		"status":    string(req.Status),
	})
}

type scheduleRequest struct {
	NextCrawlAt time.Time `json:"next_crawl_at"`
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "scrape_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scrape_id")
		return
	}
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NextCrawlAt.IsZero() {
		s.writeError(w, http.StatusBadRequest, "next_crawl_at required")
		return
	}
	if err := s.manager.SetNextCrawlAt(r.Context(), jobID, req.NextCrawlAt); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"scrape_id":     jobID.String(),
		"next_crawl_at": req.NextCrawlAt.Format(time.RFC3339),
	})
}

func (s *Server) getDatasetCrawl(w http.ResponseWriter, r *http.Request) {
	datasetID, err := uuid.Parse(chi.URLParam(r, "dataset_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid dataset_id")
		return
	}
	req, err := s.manager.GetByDataset(r.Context(), datasetID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "crawl request not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(req))
}

func (s *Server) reconfigure(w http.ResponseWriter, r *http.Request) {
	datasetID, err := uuid.Parse(chi.URLParam(r, "dataset_id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid dataset_id")
		return
	}
	var opts ingest.Options
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.manager.Reconfigure(r.Context(), opts, datasetID); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"dataset_id": datasetID.String()})
}

// crawlView is the API projection of a crawl request. The external job id is
// a plain nullable field rather than the storage representation.
type crawlView struct {
	ID              uuid.UUID          `json:"id"`
	URL             string             `json:"url,omitempty"`
	Status          ingest.CrawlStatus `json:"status"`
	IntervalSeconds int64              `json:"interval_seconds"`
	NextCrawlAt     time.Time          `json:"next_crawl_at"`
	Options         ingest.Options     `json:"crawl_options"`
	ScrapeID        *uuid.UUID         `json:"scrape_id,omitempty"`
	DatasetID       uuid.UUID          `json:"dataset_id"`
	CreatedAt       time.Time          `json:"created_at"`
	AttemptNumber   int                `json:"attempt_number"`
}

func viewOf(req ingest.CrawlRequest) crawlView {
	v := crawlView{
		ID:              req.ID,
		URL:             req.URL,
		Status:          req.Status,
		IntervalSeconds: int64(req.Interval / time.Second),
		NextCrawlAt:     req.NextCrawlAt,
		Options:         req.Options,
		DatasetID:       req.DatasetID,
		CreatedAt:       req.CreatedAt,
		AttemptNumber:   req.AttemptNumber,
	}
	if req.ScrapeID.Valid {
		id := req.ScrapeID.UUID
		v.ScrapeID = &id
	}
	return v
}

func validStatus(s ingest.CrawlStatus) bool {
	switch s {
	case ingest.StatusPending, ingest.StatusScraping, ingest.StatusCompleted,
		ingest.StatusFailed, ingest.StatusCancelled:
		return true
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
