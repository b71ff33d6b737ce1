// Package server implements the HTTP server that exposes the StockTalk agent
// via a small JSON API. The server is started by the `stocktalk serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rowanv/stocktalk/internal/logging"
	"github.com/rowanv/stocktalk/internal/retry"
)

// New constructs a Server wired with request logging, metrics, optional
// Bearer auth, and per-IP rate limiting on the chat endpoints.
func New(inv invoker, resp responder, cfg *Config) (*Server, error) {
	if inv == nil {
		return nil, fmt.Errorf("server: invoker must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full agent turn including model retries.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		invoker:   inv,
		responder: resp,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: no API key configured — authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	// Chat endpoints carry the full middleware chain; probes and metrics
	// stay unauthenticated so orchestrators can reach them.
	protect := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect("chat", s.handleChat))
	mux.Handle("POST /api/answer", protect("answer", s.handleAnswer))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat: one tool-using agent turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.handleTurn(w, r, "chat", func(ctx context.Context, threadID, message string) (string, error) {
		return s.invoker.Invoke(ctx, threadID, message)
	})
}

// handleAnswer handles POST /api/answer: a direct answer with no inventory
// access. Returns 404 when no responder is configured.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if s.responder == nil {
		http.Error(w, "direct answers are not enabled", http.StatusNotFound)
		return
	}
	s.handleTurn(w, r, "answer", func(ctx context.Context, threadID, question string) (string, error) {
		return s.responder.Respond(ctx, threadID, question)
	})
}

// handleTurn is the shared request/response plumbing for both turn
// endpoints: decode and validate, assign a thread ID if the client did not
// supply one, run the turn under the chat timeout, and record the outcome.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request, name string, run func(ctx context.Context, threadID, message string) (string, error)) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ChatTimeout)
	defer cancel()

	start := time.Now()
	answer, err := run(ctx, req.ThreadID, req.Message)
	elapsed := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = turnOutcome(ctx, err)
	}
	s.metrics.turnsTotal.WithLabelValues(name, outcome).Inc()
	s.metrics.turnDurationSeconds.WithLabelValues(name, outcome).Observe(elapsed.Seconds())

	if err != nil {
		logging.FromContext(r.Context()).Error("turn failed",
			slog.String("endpoint", name),
			slog.String("thread", req.ThreadID),
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		http.Error(w, err.Error(), turnStatus(outcome))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(chatResponse{ThreadID: req.ThreadID, Answer: answer}); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// turnOutcome classifies a failed turn for metrics and status mapping.
func turnOutcome(ctx context.Context, err error) string {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case retry.Classify(err) == retry.KindRateLimit:
		return "rate_limited"
	case retry.Classify(err) == retry.KindAuth:
		return "auth"
	default:
		return "error"
	}
}

// turnStatus maps a turn outcome onto an HTTP status code.
func turnStatus(outcome string) int {
	switch outcome {
	case "timeout":
		return http.StatusGatewayTimeout
	case "rate_limited":
		return http.StatusTooManyRequests
	case "auth":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logging.FromContext(r.Context()).Error("health encode error", slog.Any("error", err))
	}
}
