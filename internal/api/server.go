// Package api exposes the report service over HTTP: upload a telemetry
// batch, list stored reports, fetch one by id. The transport layer maps
// pipeline errors to plain-message HTTP errors; all triage semantics live
// in the inner packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ashfaaq98/incident-triage/internal/classify"
	"github.com/Ashfaaq98/incident-triage/internal/pipeline"
	"github.com/Ashfaaq98/incident-triage/internal/store"
	"github.com/Ashfaaq98/incident-triage/internal/telemetry"
)

// Options controls the HTTP server behavior.
type Options struct {
	// Bind address, e.g. "127.0.0.1:8080".
	Bind string
	// Token for Authorization: Bearer <token>. Empty disables auth.
	Token string
	// RPS is max requests per second (approximate). 0 disables rate limiting.
	RPS int
	// Burst is the token bucket size. If 0 and RPS>0, defaults to RPS.
	Burst int
	// MaxBodyBytes caps upload size; defaults to 25 MiB.
	MaxBodyBytes int64
	// Logger for request logs (optional).
	Logger *log.Logger
}

// Server serves the report API.
type Server struct {
	srv     *http.Server
	opts    Options
	pipe    *pipeline.Pipeline
	reports *store.Store
	limiter *tokenLimiter
	logger  *log.Logger
	started int32
}

// NewServer constructs the API server around a pipeline and report store.
func NewServer(pipe *pipeline.Pipeline, reports *store.Store, opts Options) *Server {
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:8080"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 25 * 1024 * 1024
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}
	var lim *tokenLimiter
	if opts.RPS > 0 {
		if opts.Burst <= 0 {
			opts.Burst = opts.RPS
		}
		lim = newTokenLimiter(opts.RPS, opts.Burst)
	}

	s := &Server{opts: opts, pipe: pipe, reports: reports, limiter: lim, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/reports", s.withAuth(s.handleReports))
	mux.HandleFunc("/reports/", s.withAuth(s.handleReportByID))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:         opts.Bind,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start begins serving and attaches to ctx for graceful shutdown. The
// listener is bound synchronously so configuration errors surface here.
func (s *Server) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return errors.New("api server already started")
	}
	ln, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Bind, err)
	}
	s.logger.Printf("report API listening on http://%s rps=%d auth=%v", s.opts.Bind, s.opts.RPS, s.opts.Token != "")

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("server error: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Printf("graceful shutdown failed: %v", err)
		}
		if s.limiter != nil {
			s.limiter.Close()
		}
	}()
	return nil
}

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.Token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) != s.opts.Token {
				w.Header().Set("WWW-Authenticate", `Bearer realm="incident-triage"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		if s.limiter != nil {
			if err := s.limiter.Wait(r.Context()); err != nil {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUpload accepts a telemetry batch (multipart "file" part, or a raw
// body with X-File-Name), runs the pipeline and persists the report.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	defer r.Body.Close()

	fileName, body, err := readUpload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	format, err := telemetry.DetectFormat(fileName, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := telemetry.ReadBatch(format, strings.NewReader(string(body)))
	if err != nil {
		http.Error(w, fmt.Sprintf("parse %s upload: %v", format, err), http.StatusBadRequest)
		return
	}

	rep, err := s.pipe.Run(r.Context(), rows)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	id, err := s.reports.SaveReport(r.Context(), fileName, rep)
	if err != nil {
		s.logger.Printf("persist report: %v", err)
		http.Error(w, "failed to persist report", http.StatusInternalServerError)
		return
	}

	s.logger.Printf("report %s: file=%q rows=%d incidents=%d dur=%s",
		id, fileName, len(rows), rep.Summary.TotalIncidents, time.Since(start))
	writeJSON(w, http.StatusCreated, store.Stored{
		ID:        id,
		FileName:  fileName,
		CreatedAt: time.Now().UTC(),
		Report:    rep,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.reports.ListReports(r.Context(), 0)
	if err != nil {
		s.logger.Printf("list reports: %v", err)
		http.Error(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/reports/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid report id", http.StatusBadRequest)
		return
	}

	stored, err := s.reports.GetReport(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("get report %s: %v", id, err)
		http.Error(w, "failed to load report", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, classify.ErrModelUnavailable):
		http.Error(w, "classifier model unavailable", http.StatusServiceUnavailable)
	default:
		s.logger.Printf("pipeline error: %v", err)
		http.Error(w, "failed to process batch", http.StatusInternalServerError)
	}
}

func readUpload(r *http.Request) (string, []byte, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("missing multipart file field: %w", err)
		}
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return header.Filename, body, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return "", nil, errors.New("empty body")
	}
	name := r.Header.Get("X-File-Name")
	if name == "" {
		name = "upload"
	}
	return name, body, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
