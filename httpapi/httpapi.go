// Package httpapi exposes the service facade over HTTP.
//
// Endpoints:
//   - GET  /courses/player   - hosted runtime document for a package
//   - GET  /courses/assets   - static asset from an extracted package
//   - POST /completions      - process a raw completion payload
//   - GET  /healthz          - liveness probe
//   - GET  /stats            - metrics snapshot (JSON)
//
// The player endpoint never returns an error page for pipeline
// failures: broken packages come back as the fallback failure document
// with status 200, per the service contract.
package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/lmsfoundry/scormhost/log"
	"github.com/lmsfoundry/scormhost/service"
	"github.com/lmsfoundry/scormhost/types"
)

// DefaultAddr is the default listen address.
const DefaultAddr = "127.0.0.1:8750"

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address (default "127.0.0.1:8750").
	Addr string
}

// Server serves the HTTP API for a service facade.
type Server struct {
	svc    *service.Service
	logger *log.Logger
	addr   string

	server   *http.Server
	listener net.Listener

	running bool
	mu      sync.Mutex
}

// New creates the HTTP server. It does not start listening.
func New(cfg Config, svc *service.Service, logger *log.Logger) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		svc:    svc,
		logger: logger,
		addr:   addr,
	}
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/courses/player", s.handlePlayer)
	mux.HandleFunc("/courses/assets", s.handleAsset)
	mux.HandleFunc("/completions", s.handleCompletion)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Start begins listening and serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server exited", map[string]any{"error": err.Error()})
		}
	}()

	s.running = true
	s.logger.Info("http server started", map[string]any{"addr": listener.Addr().String()})
	return nil
}

// Stop gracefully shuts the server down, draining in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	s.running = false
	s.logger.Info("http server stopped", nil)
	return nil
}

// Addr returns the actual listen address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// handlePlayer serves the hosted runtime document.
// Query parameters: ref (required), learner_id, learner_name, attempt_id.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	ref := q.Get("ref")
	if ref == "" {
		http.Error(w, "missing ref parameter", http.StatusBadRequest)
		return
	}

	doc := s.svc.GetRuntimeDocument(r.Context(), service.DocumentRequest{
		Ref:         types.PackageRef(ref),
		LearnerID:   q.Get("learner_id"),
		LearnerName: q.Get("learner_name"),
		AttemptID:   q.Get("attempt_id"),
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(doc)
}

// handleAsset serves a static file from an extracted package tree.
// Query parameters: ref (required), path (required, package-relative).
// Paths escaping the package root are rejected.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	ref := q.Get("ref")
	assetPath := q.Get("path")
	if ref == "" || assetPath == "" {
		http.Error(w, "missing ref or path parameter", http.StatusBadRequest)
		return
	}

	rel := filepath.FromSlash(assetPath)
	if !filepath.IsLocal(rel) {
		s.logger.Error("asset path escapes package root", map[string]any{
			"ref":  ref,
			"path": assetPath,
		})
		http.Error(w, "invalid asset path", http.StatusBadRequest)
		return
	}

	pkg := s.svc.ResolvePackage(r.Context(), types.PackageRef(ref))
	if pkg.Root == "" {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filepath.Join(pkg.Root, rel))
}

// completionRequest is the POST /completions body.
type completionRequest struct {
	PackageRef string          `json:"package_ref"`
	LearnerID  string          `json:"learner_id"`
	AttemptID  string          `json:"attempt_id"`
	PassMark   *int            `json:"pass_mark,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// handleCompletion processes a completion payload and returns the verdict.
func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	verdict := s.svc.ProcessCompletion(r.Context(), service.CompletionRequest{
		Ref:       types.PackageRef(req.PackageRef),
		LearnerID: req.LearnerID,
		AttemptID: req.AttemptID,
		Payload:   req.Payload,
		PassMark:  req.PassMark,
	})

	s.writeJSON(w, verdict)
}

// handleHealth answers the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}{
		Status:  "ok",
		Version: types.Version,
	})
}

// handleStats returns the metrics snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.svc.Stats())
}

// writeJSON writes an indented JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("json encode failed", map[string]any{"error": err.Error()})
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
