// Package httpapi serves stored report artifacts and process metrics over
// HTTP. Every route is read-only.
package httpapi

import (
	"encoding/json"
	"errors"
	"expvar"
	"io"
	"net/http"
	"strings"
	"time"

	"catalogetl/internal/blob"
	"catalogetl/internal/core"
	"catalogetl/internal/report"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Header names set on artifact responses from the stored metadata.
const (
	HeaderRunID = "X-Catalogetl-Run-Id"
	HeaderJob   = "X-Catalogetl-Job"
)

// Server routes report requests to the artifact store.
type Server struct {
	router    chi.Router
	artifacts blob.Store
	metrics   prometheus.Gatherer
	logger    core.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithMetrics exposes gatherer under /metrics.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics = gatherer }
}

// WithLogger sets the request logger.
func WithLogger(l core.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer constructs a Server reading from artifacts.
func NewServer(artifacts blob.Store, opts ...Option) *Server {
	s := &Server{router: chi.NewRouter(), artifacts: artifacts, logger: core.NoopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start))
		})
	})
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "driver": string(s.artifacts.Driver())})
	})
	s.router.Get("/reports", s.handleList)
	s.router.Get("/reports/*", s.handleGet)
	s.router.Method(http.MethodGet, "/debug/vars", expvar.Handler())
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	infos, err := s.artifacts.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		s.logger.Error("list reports", "error", err)
		writeError(w, http.StatusInternalServerError, "list reports failed")
		return
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": infos})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "*"))
	if key == "" {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	info, rc, err := s.artifacts.Get(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("get report", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "read report failed")
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = report.ContentType
	}
	w.Header().Set("Content-Type", contentType)
	if id := info.Metadata[report.MetaRunID]; id != "" {
		w.Header().Set(HeaderRunID, id)
	}
	if job := info.Metadata[report.MetaJob]; job != "" {
		w.Header().Set(HeaderJob, job)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream report", "key", key, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
