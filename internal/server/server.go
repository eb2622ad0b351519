// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/askdb/askdb/internal/catalog"
	"github.com/askdb/askdb/internal/config"
	askerr "github.com/askdb/askdb/internal/errors"
	"github.com/askdb/askdb/internal/logging"
	"github.com/askdb/askdb/internal/pipeline"
)

// Server wraps the HTTP listener around a pipeline instance. Requests
// run as independent pipeline runs; concurrency is bounded only by the
// HTTP server itself.
type Server struct {
	cfg      config.ServerConfig
	pipeline *pipeline.Pipeline
	catalog  *catalog.Store
	logger   *logging.Logger
	httpSrv  *http.Server
}

// New creates a server around the given pipeline and catalog.
func New(cfg config.ServerConfig, p *pipeline.Pipeline, cat *catalog.Store) *Server {
	s := &Server{
		cfg:      cfg,
		pipeline: p,
		catalog:  cat,
		logger:   logging.GetLogger().WithField("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Get("/catalog", s.handleCatalog)
	})

	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  config.StageTimeout(cfg.ReadTimeout),
		WriteTimeout: config.StageTimeout(cfg.WriteTimeout),
	}

	return s
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.WithField("addr", s.cfg.Addr).Info("HTTP server listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}

		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"catalog_version": s.catalog.Version(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, pipeline.Abort{
			ErrorKind: string(askerr.KindValidation),
			Message:   "invalid request body: " + err.Error(),
			Stage:     pipeline.StateStart.String(),
		})

		return
	}

	resp, abort := s.pipeline.Run(r.Context(), req)
	if abort != nil {
		writeJSON(w, abortStatus(abort.ErrorKind), abort)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	entries, err := s.catalog.Light()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": s.catalog.Version(),
		"tables":  entries,
	})
}

// abortStatus maps error kinds onto HTTP status codes. Safety and
// validation rejections are the caller's problem; everything else is
// an upstream failure.
func abortStatus(kind string) int {
	switch askerr.Kind(kind) {
	case askerr.KindValidation, askerr.KindSafety:
		return http.StatusBadRequest
	case askerr.KindInvalidQuery, askerr.KindRetryBudget:
		return http.StatusUnprocessableEntity
	case askerr.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.WithFields(map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request handled")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}
