// Package dashboard serves the dataset views and operations of the UI.
package dashboard

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/eqviz/internal/session"
)

// SetupRoutes configures routes for the dashboard feature.
func SetupRoutes(router chi.Router, orch *session.Orchestrator, sessionStore sessions.Store) error {
	handlers := NewHandlers(orch, sessionStore)

	router.Get("/api/state", handlers.State)
	router.Get("/api/history", handlers.History)
	router.Post("/api/history/refresh", handlers.RefreshHistory)
	router.Get("/api/charts/types", handlers.TypeChart)
	router.Get("/api/charts/parameters", handlers.ParameterChart)
	router.Get("/api/equipment", handlers.Equipment)
	router.Post("/api/upload", handlers.Upload)
	router.Post("/api/datasets/{id}/load", handlers.Load)
	router.Get("/api/datasets/{id}/report", handlers.Report)
	router.Get("/events", handlers.Events)

	return nil
}
