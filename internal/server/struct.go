package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// ChatTimeout bounds a single agent turn. Defaults to 2 minutes.
	ChatTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry is where server metrics are registered. Defaults to
	// prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// invoker is the interface handleChat calls to run an agent turn.
// *agent.Agent satisfies it; tests inject a fake.
type invoker interface {
	// Invoke runs one tool-using turn for the thread and returns the answer.
	Invoke(ctx context.Context, threadID, message string) (string, error)
}

// responder is the interface handleAnswer calls for tool-free answers.
// *agent.Responder satisfies it; tests inject a fake.
type responder interface {
	// Respond answers the question directly without inventory access.
	Respond(ctx context.Context, threadID, question string) (string, error)
}

// Server is the HTTP server exposing the StockTalk agent.
type Server struct {
	// invoker handles POST /api/chat turns.
	invoker invoker
	// responder handles POST /api/answer turns.
	responder responder
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments for this server instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat and POST /api/answer.
type chatRequest struct {
	// ThreadID identifies the conversation. If empty, a new thread is
	// created and its ID returned.
	ThreadID string `json:"threadId"`
	// Message is the customer's natural language message.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat and POST /api/answer.
type chatResponse struct {
	// ThreadID identifies the conversation, echoed or freshly assigned.
	ThreadID string `json:"threadId"`
	// Answer is the agent's reply.
	Answer string `json:"answer"`
}
