package api

import (
	"net/http"
	"strconv"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/httputil"
	"github.com/unsend-dev/unsend-sub000/internal/service/suppression"
)

type addSuppressionsRequest struct {
	Emails []string                 `json:"emails"`
	Reason domain.SuppressionReason `json:"reason"`
}

func (s *Server) handleAddSuppressions(w http.ResponseWriter, r *http.Request) {
	var req addSuppressionsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.Emails) == 0 {
		httputil.BadRequest(w, "emails is required")
		return
	}
	if req.Reason == "" {
		req.Reason = domain.ReasonManual
	}

	added, err := s.suppression.AddMany(r.Context(), teamID(r), req.Emails, req.Reason, "api")
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, map[string]any{"added": len(added), "entries": added})
}

func (s *Server) handleRemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httputil.BadRequest(w, "email query parameter is required")
		return
	}
	if err := s.suppression.Remove(r.Context(), teamID(r), email); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (s *Server) handleListSuppressions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	entries, total, err := s.suppression.List(r.Context(), teamID(r), suppression.ListFilter{
		Search:    q.Get("search"),
		Reason:    domain.SuppressionReason(q.Get("reason")),
		Limit:     limit,
		Offset:    offset,
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"entries": entries, "total": total})
}

func (s *Server) handleSuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.suppression.Stats(r.Context(), teamID(r))
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, stats)
}

type checkSuppressionsRequest struct {
	Emails []string `json:"emails"`
}

func (s *Server) handleCheckSuppressions(w http.ResponseWriter, r *http.Request) {
	var req checkSuppressionsRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	result := s.suppression.CheckMany(r.Context(), teamID(r), req.Emails)
	httputil.OK(w, result)
}
