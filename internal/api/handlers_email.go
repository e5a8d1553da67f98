package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/unsend-dev/unsend-sub000/internal/dispatch"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
	"github.com/unsend-dev/unsend-sub000/internal/service/sending"
)

type sendEmailRequest struct {
	To          []string            `json:"to"`
	CC          []string            `json:"cc,omitempty"`
	BCC         []string            `json:"bcc,omitempty"`
	ReplyTo     []string            `json:"replyTo,omitempty"`
	From        string              `json:"from"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html,omitempty"`
	Text        string              `json:"text,omitempty"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
	ScheduledAt *time.Time          `json:"scheduledAt,omitempty"`
}

func (s *Server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	var req sendEmailRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	email, err := s.sending.Send(r.Context(), &sending.SendRequest{
		TeamID:      teamID(r),
		To:          req.To,
		CC:          req.CC,
		BCC:         req.BCC,
		ReplyTo:     req.ReplyTo,
		From:        req.From,
		Subject:     req.Subject,
		HTML:        req.HTML,
		Text:        req.Text,
		Attachments: req.Attachments,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		writeSendError(w, err)
		return
	}
	httputil.Created(w, email)
}

func writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sending.ErrInvalidRequest):
		httputil.ErrorCode(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, sending.ErrDomainMismatch):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "domain_mismatch", err.Error())
	case errors.Is(err, sending.ErrDomainNotVerified):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "domain_not_verified", err.Error())
	case errors.Is(err, sending.ErrSuppressedRecipient):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "suppressed_recipient", err.Error())
	case errors.Is(err, dispatch.ErrQueueNotConfigured):
		httputil.ErrorCode(w, http.StatusServiceUnavailable, "region_not_configured", err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	email, events, err := s.sending.Get(r.Context(), teamID(r), chi.URLParam(r, "id"))
	if errors.Is(err, sending.ErrMessageNotFound) {
		httputil.NotFound(w, "email not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"email": email, "events": events})
}

func (s *Server) handleCancelEmail(w http.ResponseWriter, r *http.Request) {
	err := s.sending.Cancel(r.Context(), teamID(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, sending.ErrMessageNotFound):
		httputil.NotFound(w, "email not found")
	case errors.Is(err, dispatch.ErrJobNotCancellable):
		httputil.ErrorCode(w, http.StatusConflict, "not_cancellable", "message already picked up or sent")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.NoContent(w)
	}
}

type rescheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt"`
}

func (s *Server) handleRescheduleEmail(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	err := s.sending.Reschedule(r.Context(), teamID(r), chi.URLParam(r, "id"), req.ScheduledAt)
	switch {
	case errors.Is(err, sending.ErrMessageNotFound):
		httputil.NotFound(w, "email not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.NoContent(w)
	}
}
