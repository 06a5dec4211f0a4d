// Package api exposes the HTTP interface for the audit service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/planetbun/scanova/internal/audit"
	"github.com/planetbun/scanova/internal/metrics"
)

// JobService is the orchestrator surface the HTTP layer depends on.
type JobService interface {
	Start(ctx context.Context, req audit.Request) (audit.Ack, error)
	Result(ctx context.Context, target string) (audit.CachedResult, bool, error)
}

// Server wires HTTP handlers to the job orchestrator.
type Server struct {
	router chi.Router
	jobs   JobService
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobs JobService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		jobs:   jobs,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Get("/run", s.runAudit)
			r.Get("/result", s.getResult)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runAudit resolves dedup immediately and hands the work off. The response
// tells the caller whether a job started, one is already running, or a fresh
// cached result was served.
func (s *Server) runAudit(w http.ResponseWriter, r *http.Request) {
	req := audit.Request{
		Target: r.URL.Query().Get("domain"),
		Email:  r.URL.Query().Get("email"),
		Name:   r.URL.Query().Get("name"),
	}
	if req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "domain query parameter is required")
		return
	}

	ack, err := s.jobs.Start(r.Context(), req)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidTarget) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("audit submission failed", zap.String("domain", req.Target), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "audit service unavailable")
		return
	}

	status := http.StatusOK
	if ack.Status == audit.StatusStarted || ack.Status == audit.StatusProcessing {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, ack)
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("domain")
	if target == "" {
		s.writeError(w, http.StatusBadRequest, "domain query parameter is required")
		return
	}

	res, found, err := s.jobs.Result(r.Context(), target)
	if err != nil {
		if errors.Is(err, audit.ErrInvalidTarget) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("result lookup failed", zap.String("domain", target), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "audit service unavailable")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "no fresh result for this domain")
		return
	}
	s.writeJSON(w, http.StatusOK, res)
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
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
