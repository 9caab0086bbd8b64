// Package api serves health, metrics, status and a WebSocket stream of
// grid search progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/optimize"
	"backtest-lab/internal/orchestrator"
)

// ErrBusy is sent when an optimization is already running.
var ErrBusy = errors.New("optimization already running")

// Optimizer runs a persisted grid search.
type Optimizer interface {
	RunOptimization(ctx context.Context, onProgress optimize.ProgressFunc) (*orchestrator.OptimizationResult, error)
}

// Message types on /ws/optimize.
const (
	MessageProgress = "progress"
	MessageResult   = "result"
	MessageError    = "error"
)

// Message is one frame on /ws/optimize.
type Message struct {
	Type     string                  `json:"type"`
	Progress *ProgressMessage        `json:"progress,omitempty"`
	Run      *domain.OptimizationRun `json:"run,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// ProgressMessage mirrors optimize.Progress.
type ProgressMessage struct {
	Done            int       `json:"done"`
	Total           int       `json:"total"`
	Index           int       `json:"index"`
	Params          []float64 `json:"params"`
	Performance     float64   `json:"performance"`
	OutPerformance  float64   `json:"out_performance"`
	Skipped         bool      `json:"skipped"`
	BestIndex       int       `json:"best_index"`
	BestPerformance float64   `json:"best_performance"`
}

func progressMessage(p optimize.Progress) *ProgressMessage {
	return &ProgressMessage{
		Done:            p.Done,
		Total:           p.Total,
		Index:           p.Index,
		Params:          p.Params,
		Performance:     p.Summary.Performance,
		OutPerformance:  p.Summary.OutPerformance,
		Skipped:         p.Skipped,
		BestIndex:       p.BestIndex,
		BestPerformance: p.Best.Performance,
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status              string    `json:"status"`
	Uptime              string    `json:"uptime"`
	StartedAt           time.Time `json:"started_at"`
	OptimizationRunning bool      `json:"optimization_running"`
	OptimizationRuns    int       `json:"optimization_runs"`
	LastRunID           string    `json:"last_run_id,omitempty"`
	LastPerformance     float64   `json:"last_performance,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
}

// Server holds the HTTP handlers and optimization state.
type Server struct {
	optimizer Optimizer
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
	upgrader  websocket.Upgrader
	started   time.Time

	mu      sync.Mutex
	running bool
	runs    int
	lastRun *domain.OptimizationRun
	lastErr error
}

// NewServer creates a Server. gatherer defaults to the Prometheus default registry.
func NewServer(optimizer Optimizer, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		optimizer: optimizer,
		gatherer:  gatherer,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		started: time.Now(),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// Prometheus metrics
	router.Handle("/metrics", observability.HandlerFor(s.gatherer)).Methods("GET")

	router.HandleFunc("/status", s.handleStatus).Methods("GET")

	// WebSocket endpoint
	router.HandleFunc("/ws/optimize", s.handleOptimize).Methods("GET")
	return router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:              "running",
		Uptime:              time.Since(s.started).Round(time.Second).String(),
		StartedAt:           s.started,
		OptimizationRunning: s.running,
		OptimizationRuns:    s.runs,
	}
	if s.lastRun != nil {
		resp.LastRunID = s.lastRun.RunID
		resp.LastPerformance = s.lastRun.Summary.Performance
	}
	if s.lastErr != nil {
		resp.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Server) finish(run *domain.OptimizationRun, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs++
	s.lastErr = err
	if err == nil {
		s.lastRun = run
	}
}

// runOptimization turns a panic in the optimizer into an error so the
// running flag is always released.
func (s *Server) runOptimization(ctx context.Context, onProgress optimize.ProgressFunc) (out *orchestrator.OptimizationResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("optimization panicked: %v", p)
		}
	}()
	out, err = s.optimizer.RunOptimization(ctx, onProgress)
	if err == nil && out == nil {
		err = errors.New("optimizer returned no result")
	}
	return out, err
}

// handleOptimize upgrades to a WebSocket, runs one grid search and streams
// progress frames followed by a result or error frame. Closing the socket
// cancels the search.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if !s.tryStart() {
		conn.WriteJSON(Message{Type: MessageError, Error: ErrBusy.Error()})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: any read error means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Progress calls are serialized by the optimizer.
	var writeErr error
	onProgress := func(p optimize.Progress) {
		if writeErr != nil {
			return
		}
		if writeErr = conn.WriteJSON(Message{Type: MessageProgress, Progress: progressMessage(p)}); writeErr != nil {
			cancel()
		}
	}

	out, err := s.runOptimization(ctx, onProgress)
	if err != nil {
		s.finish(nil, err)
		s.logger.Error("optimization failed", zap.Error(err))
		conn.WriteJSON(Message{Type: MessageError, Error: err.Error()})
		return
	}
	s.finish(out.Run, nil)

	if err := conn.WriteJSON(Message{Type: MessageResult, Run: out.Run}); err != nil {
		s.logger.Warn("write result", zap.Error(err))
		return
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
