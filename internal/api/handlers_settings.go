package api

import (
	"context"
	"net/http"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
)

// RateSettingsRepo persists per-region quota configuration.
type RateSettingsRepo interface {
	Upsert(ctx context.Context, s *domain.SendRateSetting) error
}

type sendRateRequest struct {
	Region           string `json:"region"`
	RateLimit        int    `json:"rateLimit"`
	TransactionalPct int    `json:"transactionalPct"`
}

// handleUpdateSendRate persists a region's quota and applies it to the live
// lanes. Reconfiguration only resizes worker pools; queued jobs keep their
// place.
func (s *Server) handleUpdateSendRate(w http.ResponseWriter, r *http.Request) {
	var req sendRateRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Region == "" || req.RateLimit <= 0 {
		httputil.BadRequest(w, "region and a positive rateLimit are required")
		return
	}
	if req.TransactionalPct < 0 || req.TransactionalPct > 100 {
		httputil.BadRequest(w, "transactionalPct must be between 0 and 100")
		return
	}

	setting := &domain.SendRateSetting{
		Region:           req.Region,
		RateLimit:        req.RateLimit,
		TransactionalPct: req.TransactionalPct,
	}
	if err := s.settings.Upsert(r.Context(), setting); err != nil {
		httputil.InternalError(w, err)
		return
	}
	s.dispatcher.Configure(req.Region, req.RateLimit, req.TransactionalPct)

	httputil.OK(w, map[string]any{
		"region":                    req.Region,
		"transactionalConcurrency":  s.dispatcher.Concurrency(req.Region, domain.CategoryTransactional),
		"marketingConcurrency":      s.dispatcher.Concurrency(req.Region, domain.CategoryMarketing),
	})
}

func (s *Server) handleDispatchStats(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, s.dispatcher.Stats())
}
