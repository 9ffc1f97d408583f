package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/corkboard/internal/metrics"
	"github.com/dyluth/corkboard/pkg/board"
)

// Feed states reported by /healthz
const (
	FeedDisabled     = "disabled"
	FeedConnected    = "connected"
	FeedDisconnected = "disconnected"
)

// Pinger is satisfied by the Redis feed client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer provides HTTP health and metrics endpoints for a corkboard server.
type HealthServer struct {
	board   *board.Board
	server  *Server
	feed    Pinger
	metrics *metrics.Metrics
	http    *http.Server
}

// NewHealthServer creates a health server. feed and m may be nil.
func NewHealthServer(b *board.Board, srv *Server, feed Pinger, m *metrics.Metrics) *HealthServer {
	return &HealthServer{
		board:   b,
		server:  srv,
		feed:    feed,
		metrics: m,
	}
}

// Handler returns the HTTP routes: /healthz and, when metrics are enabled, /metrics.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}
	return mux
}

// Start listens on addr and serves in the background.
// Listening happens synchronously so that a bad address is reported here.
func (h *HealthServer) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for health checks on %s: %w", addr, err)
	}

	h.http = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.server.log.WithError(err).Error("Health server error")
		}
	}()

	return ln.Addr(), nil
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.http == nil {
		return nil
	}
	return h.http.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK unless the Redis feed is configured and unreachable.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.board.Stats()
	response := HealthResponse{
		Status:   "healthy",
		Notes:    stats.Notes,
		Pins:     stats.Pins,
		Sessions: h.server.ActiveSessions(),
		Feed:     FeedDisabled,
	}

	status := http.StatusOK
	if h.feed != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.feed.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Feed = FeedDisconnected
			response.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			response.Feed = FeedConnected
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status   string `json:"status"`
	Notes    int    `json:"notes"`
	Pins     int    `json:"pins"`
	Sessions int    `json:"sessions"`
	Feed     string `json:"feed"`
	Error    string `json:"error,omitempty"`
}
