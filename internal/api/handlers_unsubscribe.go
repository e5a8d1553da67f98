package api

import (
	"errors"
	"net/http"

	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
	"github.com/unsend-dev/unsend-sub000/internal/service/campaign"
)

// handleUnsubscribeInfo resolves a signed link to the contact it names, so
// the unsubscribe page can show who is about to be removed.
func (s *Server) handleUnsubscribeInfo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contact, _, err := s.campaigns.VerifyToken(r.Context(), q.Get("id"), q.Get("hash"))
	if err != nil {
		writeUnsubscribeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"email":      contact.Email,
		"subscribed": contact.Subscribed,
	})
}

// handleUnsubscribe processes both the page's form submit and RFC 8058
// one-click POSTs from mail clients.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contact, err := s.campaigns.Unsubscribe(r.Context(), q.Get("id"), q.Get("hash"))
	if err != nil {
		writeUnsubscribeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"email":      contact.Email,
		"subscribed": contact.Subscribed,
	})
}

func (s *Server) handleResubscribe(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contact, err := s.campaigns.Resubscribe(r.Context(), q.Get("id"), q.Get("hash"))
	if err != nil {
		writeUnsubscribeError(w, err)
		return
	}
	httputil.OK(w, map[string]any{
		"email":      contact.Email,
		"subscribed": contact.Subscribed,
	})
}

func writeUnsubscribeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, campaign.ErrInvalidUnsubscribeSignature):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_signature", "invalid or tampered unsubscribe link")
	case errors.Is(err, campaign.ErrContactNotFound):
		httputil.NotFound(w, "contact not found")
	default:
		httputil.InternalError(w, err)
	}
}
