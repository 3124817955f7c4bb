// Package httpadapter exposes the analysis service over HTTP: the upload
// endpoint plus health, readiness, and metrics routes.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/flood-risk-service/internal/config"
	"github.com/couchcryptid/flood-risk-service/internal/domain"
)

// VideoAnalyzer runs the full pipeline over a video file on disk.
type VideoAnalyzer interface {
	Analyze(ctx context.Context, path string) (domain.AnalysisResult, error)
}

// ReadinessChecker reports whether the service can accept work.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReportPublisher forwards completed analysis reports downstream.
type ReportPublisher interface {
	Publish(ctx context.Context, report domain.AnalysisReport) error
}

// Container formats accepted by the upload endpoint.
var allowedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/avi":       true,
	"video/x-msvideo": true,
}

// Server exposes the analysis endpoint plus health, readiness, and metrics
// routes.
type Server struct {
	httpServer *http.Server
	analyzer   VideoAnalyzer
	publisher  ReportPublisher
	logger     *slog.Logger

	maxUploadBytes int64
	origins        []string
}

// NewServer creates the HTTP server. publisher may be nil when report
// publishing is disabled.
func NewServer(cfg *config.Config, analyzer VideoAnalyzer, ready ReadinessChecker, publisher ReportPublisher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: mux,
			// Uploads of whole clips take a while on slow links.
			ReadTimeout:  5 * time.Minute,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		analyzer:       analyzer,
		publisher:      publisher,
		logger:         logger,
		maxUploadBytes: cfg.MaxUploadBytes,
		origins:        cfg.FrontendOrigins,
	}

	mux.HandleFunc("GET /healthz", handleLiveness)
	mux.HandleFunc("GET /readyz", handleReadiness(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("POST /analyze-video", s.withCORS(http.HandlerFunc(s.handleAnalyzeVideo)))
	mux.Handle("OPTIONS /analyze-video", s.withCORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReadiness(ready ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ready.CheckReadiness(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// withCORS allows configured browser origins to call the analysis endpoint.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleAnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form with a 'file' field is required")
		return
	}
	defer file.Close()

	contentType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || !allowedVideoTypes[contentType] {
		writeError(w, http.StatusBadRequest, "unsupported file type; use mp4 or avi")
		return
	}

	dir, err := os.MkdirTemp("", "flood-analyze-")
	if err != nil {
		s.logger.Error("temp dir creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "upload"+filepath.Ext(header.Filename))
	if err := spool(path, file); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		s.logger.Error("spooling upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), path)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}

	if s.publisher != nil {
		report := domain.NewReport(header.Filename, result)
		if err := s.publisher.Publish(r.Context(), report); err != nil {
			// Publishing is best effort; the caller still gets the verdict.
			s.logger.Warn("report publish failed", "report_id", report.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	var adapterErr *domain.AdapterError
	switch {
	case errors.Is(err, domain.ErrSourceUnavailable):
		writeError(w, http.StatusBadRequest, "Could not read video stream")
	case errors.Is(err, domain.ErrEmptyStream):
		writeError(w, http.StatusBadRequest, "No frames decoded from video")
	case errors.Is(err, domain.ErrSceneRejected):
		writeError(w, http.StatusBadRequest, "Scene appears non-water; please upload flood-prone footage")
	case errors.As(err, &adapterErr):
		s.logger.Error("adapter failure during analysis", "adapter", adapterErr.Adapter, "error", err)
		writeError(w, http.StatusBadGateway, "analysis backend unavailable")
	default:
		s.logger.Error("analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func spool(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
