// Package api exposes the HTTP surface: the v1 management API, the public
// unsubscribe pages and the provider notification callback.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unsend-dev/unsend-sub000/internal/dispatch"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
	"github.com/unsend-dev/unsend-sub000/internal/service/campaign"
	"github.com/unsend-dev/unsend-sub000/internal/service/ingest"
	"github.com/unsend-dev/unsend-sub000/internal/service/sending"
	"github.com/unsend-dev/unsend-sub000/internal/service/suppression"
	"github.com/unsend-dev/unsend-sub000/internal/service/webhook"
)

// Server wires the services into an HTTP server.
type Server struct {
	sending     *sending.Service
	campaigns   *campaign.Service
	suppression *suppression.Service
	webhooks    *webhook.Service
	ingest      *ingest.Service
	dispatcher  *dispatch.Manager
	settings    RateSettingsRepo

	router *chi.Mux
	server *http.Server
}

// NewServer creates the API server. Routes are registered immediately.
func NewServer(
	sendingSvc *sending.Service,
	campaignSvc *campaign.Service,
	suppressionSvc *suppression.Service,
	webhookSvc *webhook.Service,
	ingestSvc *ingest.Service,
	dispatcher *dispatch.Manager,
	settings RateSettingsRepo,
) *Server {
	s := &Server{
		sending:     sendingSvc,
		campaigns:   campaignSvc,
		suppression: suppressionSvc,
		webhooks:    webhookSvc,
		ingest:      ingestSvc,
		dispatcher:  dispatcher,
		settings:    settings,
		router:      chi.NewRouter(),
	}
	s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start runs the server until the listener fails.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("api server listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// teamID resolves the acting team. Deployments front this service with their
// own auth layer; the resolved team rides in on a header, defaulting to the
// single-tenant team.
func teamID(r *http.Request) int64 {
	if v := r.Header.Get("X-Team-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 1
}
