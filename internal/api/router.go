package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the routes of h behind the request logging and panic
// recovery middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)
	r.Post("/verse-stats", h.verseStats)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Post("/verses", h.recordVerse)
		r.Get("/daily-activity", h.dailyActivity)
		r.Get("/analytics", h.analytics)
	})
	return r
}
