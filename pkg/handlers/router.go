package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/session/restore", h.Restore)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(h.tokens))

			r.Post("/logout", h.Logout)
			r.Get("/statement", h.Statement)
			r.Post("/sort", h.Sort)
			r.Post("/transfers", h.Transfer)
			r.Post("/loans", h.Loan)
			r.Post("/close", h.Close)
			r.Get("/events", h.Events(newUpgrader(allowedOrigins)))
		})
	})

	return otelhttp.NewHandler(r, "bankist")
}
