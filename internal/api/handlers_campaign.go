package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
	"github.com/unsend-dev/unsend-sub000/internal/service/campaign"
)

func (s *Server) handleSendCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.campaigns.Send(r.Context(), teamID(r), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, campaign.ErrCampaignNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrCampaignNoContent):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "no_content", err.Error())
	case errors.Is(err, campaign.ErrCampaignNoList):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "no_contact_book", err.Error())
	case errors.Is(err, campaign.ErrDomainMismatch):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "domain_mismatch", err.Error())
	case errors.Is(err, campaign.ErrDomainNotVerified):
		httputil.ErrorCode(w, http.StatusUnprocessableEntity, "domain_not_verified", err.Error())
	case errors.Is(err, campaign.ErrSendInProgress):
		httputil.ErrorCode(w, http.StatusConflict, "send_in_progress", err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, c)
	}
}
