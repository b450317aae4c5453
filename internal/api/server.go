// Package api serves the controller's admin HTTP surface: health, status,
// the signal journal and a live event stream.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mattjoyce/feedbackd/internal/dispatch"
	"github.com/mattjoyce/feedbackd/internal/events"
	"github.com/mattjoyce/feedbackd/internal/journal"
	"github.com/mattjoyce/feedbackd/internal/plugin"
)

// StatusProvider reports the dispatcher state.
type StatusProvider interface {
	Status() dispatch.Status
}

// FeedbackCatalog lists loadable feedbacks.
type FeedbackCatalog interface {
	All() []*plugin.Entry
}

// JournalReader reads recent journal entries.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// EventSource is the hub the /events stream reads from.
type EventSource interface {
	SubscribePrefix(prefix string) (<-chan events.Event, func())
	SnapshotSince(lastID int64) []events.Event
}

// Config holds API server configuration
type Config struct {
	Listen string
	APIKey string
	// Fingerprint is the BLAKE3 digest of the loaded config file.
	Fingerprint string
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	status    StatusProvider
	catalog   FeedbackCatalog
	journal   JournalReader
	events    EventSource
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. journal may be nil when the
// journal is disabled.
func New(config Config, status StatusProvider, catalog FeedbackCatalog, journal JournalReader, hub EventSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		config:    config,
		status:    status,
		catalog:   catalog,
		journal:   journal,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/status", s.handleStatus)
		r.Get("/feedbacks", s.handleFeedbacks)
		r.Get("/journal", s.handleJournal)
		r.Get("/events", s.handleEvents)
		r.Get("/openapi.json", s.handleOpenAPI)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
