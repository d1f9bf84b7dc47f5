package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/descent/internal/config"
	apperrors "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
)

// Server implements the HTTP and JSON-RPC interface of the minimization
// service. Runs execute asynchronously, at most cfg.Optimization.WorkerCount
// at a time.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	zap     *zap.Logger
	metrics *metrics

	workers chan struct{}
	now     func() time.Time

	mu     sync.RWMutex // guards runs, closed and every RunState
	runs   map[string]*RunState
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a server from cfg. Engine logs are routed through
// logger via the zap bridge.
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:     cfg,
		logger:  logger.WithField("component", "server"),
		zap:     logging.NewZapLogger(logger),
		metrics: newMetrics(),
		workers: make(chan struct{}, cfg.Optimization.WorkerCount),
		now:     time.Now,
		runs:    make(map[string]*RunState),
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Get("/runs/{id}/trajectory", s.handleTrajectory)
		r.Delete("/runs/{id}", s.handleCancel)
		r.Get("/objectives", s.handleObjectives)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// MetricsHandler serves the server's Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.handler()
}

// Close cancels all runs and waits for their goroutines to exit. Runs
// started after Close are rejected.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, run := range s.runs {
		run.cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
	_ = s.zap.Sync()
	return nil
}

func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var req MinimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.Wrap(err, apperrors.InvalidArgument, "invalid request body"))
		return
	}

	view, err := s.startRun(req)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, view)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	view, err := s.runView(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleTrajectory answers with a JSON array, or with JSON Lines when the
// client accepts application/x-ndjson.
func (s *Server) handleTrajectory(w http.ResponseWriter, r *http.Request) {
	records, err := s.trajectory(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}

	if r.Header.Get("Accept") == "application/x-ndjson" {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		if err := optimization.WriteTrajectory(w, records); err != nil {
			s.logger.WithError(err).Warn("Trajectory write failed")
		}
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	view, err := s.cancelRun(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleObjectives(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.objectives())
}

func (s *Server) objectives() map[string][]string {
	return map[string][]string{"objectives": functions.Names()}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	fields := map[string]interface{}{"status": status}
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("Request error", fields)
	} else {
		s.logger.WithError(err).Debug("Request rejected", fields)
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
