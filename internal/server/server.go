package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"linkshare/internal/store"
	"linkshare/pkg/templates"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 10 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// ShutdownTimeout bounds how long in-flight requests may take on shutdown
	ShutdownTimeout = 10 * time.Second
)

// Deployer accepts one-way deploy triggers. Implementations must not block.
type Deployer interface {
	Trigger(reason string) (runID string, accepted bool)
}

// Options carries values injected at startup
type Options struct {
	// WebhookSecret is the shared HMAC key; empty makes every webhook call a 500
	WebhookSecret string

	// WebhookRateLimit is requests per minute per client IP; 0 disables limiting
	WebhookRateLimit int
}

// Server is the application context shared by all handlers
type Server struct {
	Store     *store.Store
	Deployer  Deployer
	Templates *templates.Set
	Metrics   *Metrics
	Logger    *slog.Logger

	webhookSecret    string
	webhookRateLimit int
}

// NewServer creates a new server instance
func NewServer(st *store.Store, deployer Deployer, tmpl *templates.Set, metrics *Metrics, logger *slog.Logger, opts Options) *Server {
	return &Server{
		Store:            st,
		Deployer:         deployer,
		Templates:        tmpl,
		Metrics:          metrics,
		Logger:           logger,
		webhookSecret:    opts.WebhookSecret,
		webhookRateLimit: opts.WebhookRateLimit,
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"request_id", middleware.GetReqID(r.Context()),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	r.Get("/", s.HandleIndex)
	r.Get("/add", s.HandleAddForm)
	r.Post("/add", s.HandleAdd)
	r.Post("/api/delete/{id:[0-9]+}", s.HandleDelete)
	r.Get("/dashboard", s.HandleDashboard)
	r.Get("/health", s.HandleHealth)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())

	if s.webhookRateLimit > 0 {
		r.With(NewRateLimitMiddleware(s.webhookRateLimit, s.Logger)).Post("/update_server", s.HandleWebhook)
	} else {
		r.Post("/update_server", s.HandleWebhook)
	}

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("Starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
