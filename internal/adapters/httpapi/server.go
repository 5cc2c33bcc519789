// Package httpapi exposes the tracker over a chi JSON API and a WebSocket
// summary stream.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tradeTracker/internal/domain"
	"tradeTracker/internal/ports"
)

// Tracker is the part of the application service the API needs.
type Tracker interface {
	Trades() []*domain.Trade
	Summary() domain.Summary
	CreateTrade(ctx context.Context, req domain.NewTrade) (*domain.Trade, error)
	Close(ctx context.Context, id int64, req domain.CloseRequest) (*domain.Trade, error)
	DeleteTrade(ctx context.Context, id int64) error
	RefreshPrice(ctx context.Context) (domain.PriceQuote, error)
}

// Server serves the tracker API.
type Server struct {
	cfg     *Config
	tracker Tracker
	logger  ports.Logger
	gate    *PasswordGate
	hub     *streamHub
	router  chi.Router
}

// NewServer wires the router. gate may be nil to leave the API open.
func NewServer(cfg *Config, tracker Tracker, logger ports.Logger, gate *PasswordGate) *Server {
	s := &Server{
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
		gate:    gate,
		hub:     newStreamHub(logger),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(cors(s.cfg.AllowedOrigin))

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.Error(r.Context(), err, "healthcheck write failed")
		}
	})

	r.Route("/api", func(r chi.Router) {
		if s.gate != nil {
			r.Use(s.gate.Middleware)
		}
		r.Get("/trades", s.handleListTrades)
		r.Post("/trades", s.handleCreateTrade)
		r.Post("/trades/{id}/close", s.handleCloseTrade)
		r.Delete("/trades/{id}", s.handleDeleteTrade)
		r.Get("/summary", s.handleSummary)
		r.Get("/price", s.handlePrice)
		r.Post("/price/refresh", s.handleRefreshPrice)
		r.Get("/stream", s.handleStream)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Broadcast pushes a summary to every stream client. It matches the
// application service listener signature.
func (s *Server) Broadcast(summary domain.Summary) {
	s.hub.Broadcast(summary)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Error(ctx, err, "HTTP server crashed")
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(context.Background(), "Shutting down HTTP server gracefully...")
	s.hub.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(context.Background(), err, "HTTP server shutdown error")
		return err
	}
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 5 * time.Second
}
