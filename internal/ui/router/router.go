// Package router sets up HTTP routes for the UI server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/session"
	authFeature "github.com/leapstack-labs/eqviz/internal/ui/features/auth"
	dashboardFeature "github.com/leapstack-labs/eqviz/internal/ui/features/dashboard"
	"github.com/leapstack-labs/eqviz/internal/ui/resources"
)

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, orch *session.Orchestrator, sessionStore sessions.Store) error {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	// Static assets
	router.Handle("/static/*", resources.Handler())
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, resources.StaticPath("index.html"), http.StatusFound)
	})

	// Feature routes
	if err := dashboardFeature.SetupRoutes(router, orch, sessionStore); err != nil {
		return err
	}

	if err := authFeature.SetupRoutes(router, orch, sessionStore); err != nil {
		return err
	}

	return nil
}
