package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
	"github.com/unsend-dev/unsend-sub000/internal/service/webhook"
)

type createWebhookRequest struct {
	URL      string               `json:"url"`
	Events   []domain.EmailStatus `json:"events"`
	DomainID *int64               `json:"domainId,omitempty"`
}

type createWebhookResponse struct {
	*domain.Webhook
	// The signing secret is shown exactly once, on creation.
	Secret string `json:"secret"`
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req createWebhookRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	hook, err := s.webhooks.Create(r.Context(), teamID(r), req.URL, req.Events, req.DomainID)
	switch {
	case errors.Is(err, webhook.ErrInvalidURL), errors.Is(err, webhook.ErrNoEvents):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.Created(w, createWebhookResponse{Webhook: hook, Secret: hook.Secret})
	}
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	err := s.webhooks.Delete(r.Context(), teamID(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		httputil.NotFound(w, "webhook not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.NoContent(w)
	}
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := s.webhooks.List(r.Context(), teamID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"webhooks": hooks})
}
