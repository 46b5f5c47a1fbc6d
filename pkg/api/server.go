// Package api wires the coordinator's HTTP surface: hand-written
// net/http.ServeMux handlers, routed and decoded by hand rather than
// through a generated server, in the manual-routing style common
// across operator-facing web servers.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/AOSC-Dev/buildit/internal/core/ports"
	"github.com/AOSC-Dev/buildit/internal/core/services"
	"github.com/AOSC-Dev/buildit/internal/relay"
)

// Server holds every collaborator an HTTP handler needs.
type Server struct {
	logger         *slog.Logger
	orchestrator   *services.Orchestrator
	dispatcher     *services.Dispatcher
	completion     *services.CompletionHandler
	query          *services.QueryService
	relay          *relay.Hub
	clock          ports.Clock
	workerSecret   string
	livenessTimeout time.Duration
	handlerTimeout time.Duration
}

// Config bundles Server's construction parameters.
type Config struct {
	Logger          *slog.Logger
	Orchestrator    *services.Orchestrator
	Dispatcher      *services.Dispatcher
	Completion      *services.CompletionHandler
	Query           *services.QueryService
	Relay           *relay.Hub
	Clock           ports.Clock
	WorkerSecret    string
	LivenessTimeout time.Duration
	HandlerTimeout  time.Duration
}

func NewServer(cfg Config) *Server {
	clock := cfg.Clock
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Server{
		logger:          cfg.Logger,
		orchestrator:    cfg.Orchestrator,
		dispatcher:      cfg.Dispatcher,
		completion:      cfg.Completion,
		query:           cfg.Query,
		relay:           cfg.Relay,
		clock:           clock,
		workerSecret:    cfg.WorkerSecret,
		livenessTimeout: cfg.LivenessTimeout,
		handlerTimeout:  cfg.HandlerTimeout,
	}
}

// Handler builds the routed mux, wrapping every non-WebSocket handler
// with a request deadline.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/pipeline/list", s.handlePipelineList)
	mux.HandleFunc("GET /api/pipeline/info", s.handlePipelineInfo)
	mux.HandleFunc("POST /api/pipeline/new", s.handlePipelineNew)

	mux.HandleFunc("GET /api/job/list", s.handleJobList)
	mux.HandleFunc("GET /api/job/info", s.handleJobInfo)
	mux.HandleFunc("POST /api/job/restart", s.handleJobRestart)

	mux.HandleFunc("GET /api/worker/list", s.handleWorkerList)
	mux.HandleFunc("GET /api/worker/info", s.handleWorkerInfo)

	mux.HandleFunc("GET /api/dashboard/status", s.handleDashboardStatus)

	mux.HandleFunc("POST /api/worker/heartbeat", s.handleWorkerHeartbeat)
	mux.HandleFunc("POST /api/worker/poll", s.handleWorkerPoll)
	mux.HandleFunc("POST /api/worker/complete", s.handleWorkerComplete)

	// WebSocket endpoints bypass the deadline wrapper: they are
	// long-lived for as long as the underlying connection stays open.
	mux.HandleFunc("GET /api/ws/producer/{hostname}", s.handleRelayProducer)
	mux.HandleFunc("GET /api/ws/viewer/{hostname}", s.handleRelayViewer)

	return s.withRequestID(s.withTimeout(mux))
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isWebsocketRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.handlerTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRequestID stamps every inbound request with a UUID so a worker's
// poll/complete round trip and a browser's dashboard query can be
// correlated across the access log.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "request_id", requestID, "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

func isWebsocketRoute(path string) bool {
	return len(path) >= len("/api/ws/") && path[:len("/api/ws/")] == "/api/ws/"
}
