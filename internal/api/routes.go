package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
)

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Team-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.OK(w, map[string]string{"status": "ok"})
	})

	// Provider notifications arrive unauthenticated from SNS.
	r.Post("/api/ses_callback", s.handleProviderCallback)

	// Public list-management endpoints, authenticated by link signature.
	r.Get("/unsubscribe", s.handleUnsubscribeInfo)
	r.Post("/unsubscribe", s.handleUnsubscribe)
	r.Post("/subscribe", s.handleResubscribe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/emails", func(r chi.Router) {
			r.Post("/", s.handleSendEmail)
			r.Get("/{id}", s.handleGetEmail)
			r.Post("/{id}/cancel", s.handleCancelEmail)
			r.Post("/{id}/reschedule", s.handleRescheduleEmail)
		})

		r.Post("/campaigns/{id}/send", s.handleSendCampaign)

		r.Route("/suppressions", func(r chi.Router) {
			r.Get("/", s.handleListSuppressions)
			r.Post("/", s.handleAddSuppressions)
			r.Delete("/", s.handleRemoveSuppression)
			r.Get("/stats", s.handleSuppressionStats)
			r.Post("/check", s.handleCheckSuppressions)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", s.handleListWebhooks)
			r.Post("/", s.handleCreateWebhook)
			r.Delete("/{id}", s.handleDeleteWebhook)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Put("/send-rate", s.handleUpdateSendRate)
			r.Get("/dispatch", s.handleDispatchStats)
		})
	})
}
