// Package auth serves login, registration and logout for the UI.
package auth

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/session"
)

// SetupRoutes configures routes for the auth feature.
func SetupRoutes(router chi.Router, orch *session.Orchestrator, sessionStore sessions.Store) error {
	handlers := NewHandlers(orch, sessionStore)

	router.Post("/api/login", handlers.Login)
	router.Post("/api/register", handlers.Register)
	router.Post("/api/logout", handlers.Logout)

	return nil
}
