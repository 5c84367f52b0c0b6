// Package ui provides the local web dashboard for an eqviz session.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/session"
	"github.com/leapstack-labs/eqviz/internal/ui/router"
	"github.com/leapstack-labs/eqviz/internal/watch"
	"golang.org/x/sync/errgroup"
)

// Server is the dashboard server.
type Server struct {
	orch         *session.Orchestrator
	sessionStore *sessions.CookieStore
	port         int
	watcher      *watch.Watcher
	logger       *slog.Logger
}

// Config holds configuration for the UI server.
type Config struct {
	Session *session.Orchestrator
	Port    int
	// SessionSecret signs the cookie session. A random key is used when empty,
	// so cookies do not survive a restart.
	SessionSecret string
	// Watcher, when set, runs alongside the server.
	Watcher *watch.Watcher
	Logger  *slog.Logger
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	sessionStore := sessions.NewCookieStore(secret)
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Secure = false // served over plain HTTP

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		orch:         cfg.Session,
		sessionStore: sessionStore,
		port:         cfg.Port,
		watcher:      cfg.Watcher,
		logger:       logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.logRequests,
	)

	if err := router.SetupRoutes(r, s.orch, s.sessionStore); err != nil {
		return nil, fmt.Errorf("failed to setup routes: %w", err)
	}
	return r, nil
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	handler, err := s.Handler()
	if err != nil {
		_ = ln.Close()
		return err
	}

	s.logger.Info("starting UI server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// History is refreshed once per dashboard start, like any client start.
	eg.Go(func() error {
		s.orch.Start(egctx)
		return nil
	})

	if s.watcher != nil {
		eg.Go(func() error {
			return s.watcher.Run(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server...")
		// Event streams only end when their request context does.
		s.orch.Close()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
