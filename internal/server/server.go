// Package server exposes the Daylight HTTP and WebSocket API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/metrics"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server/handler"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server/middleware"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit is the per-client request budget per minute; 0 disables it.
	RateLimit int
	Limiter   domain.RateLimiter
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// A nil handler leaves its routes unregistered.
type Handlers struct {
	Health        *handler.HealthHandler
	Status        *handler.StatusHandler
	Opportunities *handler.OpportunityHandler
	Scan          *handler.ScanHandler
	History       *handler.HistoryHandler
	Alerts        *handler.AlertHandler
	Watchlist     *handler.WatchlistHandler
	Markets       *handler.MarketHandler
	Portfolio     *handler.PortfolioHandler
	Archive       *handler.ArchiveHandler
	Audit         *handler.AuditHandler
	Events        *handler.EventHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// Each request is tagged with an id, measured, logged, and then passes CORS,
// auth and rate limiting before reaching the mux.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := NewMux(handlers, wsHub)

	var h http.Handler = mux
	if cfg.RateLimit > 0 && cfg.Limiter != nil {
		h = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, time.Minute, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	h = middleware.Logging(logger)(h)
	h = metrics.Middleware(h)
	h = middleware.RequestID(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// NewMux registers every route on a fresh ServeMux, without middleware.
func NewMux(handlers Handlers, wsHub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	mux.Handle("GET /metrics", metrics.Handler())

	if h := handlers.Opportunities; h != nil {
		mux.HandleFunc("GET /api/opportunities", h.List)
		mux.HandleFunc("GET /api/opportunities/open", h.ListOpen)
	}

	if h := handlers.Scan; h != nil {
		mux.HandleFunc("POST /api/scan/trigger", h.Trigger)
		mux.HandleFunc("GET /api/scan/config", h.GetConfig)
		mux.HandleFunc("PUT /api/scan/config", h.UpdateConfig)
		mux.HandleFunc("GET /api/view", h.View)
		mux.HandleFunc("GET /api/movers", h.Movers)
	}

	if h := handlers.History; h != nil {
		mux.HandleFunc("GET /api/history/{key}", h.Series)
		mux.HandleFunc("GET /api/sparkline/{key}", h.Sparkline)
	}

	if h := handlers.Alerts; h != nil {
		mux.HandleFunc("GET /api/alerts", h.List)
		mux.HandleFunc("POST /api/alerts", h.Create)
		mux.HandleFunc("DELETE /api/alerts/{id}", h.Delete)
	}

	if h := handlers.Watchlist; h != nil {
		mux.HandleFunc("GET /api/watchlist", h.List)
		mux.HandleFunc("POST /api/watchlist", h.Add)
		mux.HandleFunc("DELETE /api/watchlist/{id}", h.Remove)
	}

	if h := handlers.Markets; h != nil {
		mux.HandleFunc("GET /api/markets/kalshi/{ticker}", h.GetKalshi)
		mux.HandleFunc("GET /api/markets/poly/{slug}", h.GetPolymarket)
	}

	if handlers.Portfolio != nil {
		mux.HandleFunc("GET /api/portfolio", handlers.Portfolio.Get)
	}
	if handlers.Archive != nil {
		mux.HandleFunc("GET /api/archive", handlers.Archive.List)
		mux.HandleFunc("GET /api/archive/object", handlers.Archive.Object)
	}

	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	}
	if handlers.Events != nil {
		mux.HandleFunc("GET /api/events", handlers.Events.List)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
	return mux
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
