package suppression

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/logger"
)

// Service implements suppression business logic. It is safe for concurrent
// use if the underlying repository is.
type Service struct {
	repo Repository
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Add upserts a suppression entry keyed by (team, lowercase-trimmed email).
// Calling it again for the same pair updates reason/source without creating
// a second entry.
func (s *Service) Add(ctx context.Context, teamID int64, email string, reason domain.SuppressionReason, source string) (*domain.Suppression, error) {
	email = normalize(email)
	if email == "" {
		return nil, ErrInvalidEmail
	}

	entry, err := s.repo.Upsert(ctx, &domain.Suppression{
		ID:     uuid.New().String(),
		TeamID: teamID,
		Email:  email,
		Reason: reason,
		Source: source,
	})
	if err != nil {
		logger.Error("failed to add suppression", "email", email, "team_id", teamID, "error", err)
		return nil, err
	}
	logger.Info("email added to suppression list", "email", email, "team_id", teamID, "reason", string(reason))
	return entry, nil
}

// AddMany upserts a batch of entries. Per-entry failures are returned after
// the whole batch is attempted.
func (s *Service) AddMany(ctx context.Context, teamID int64, emails []string, reason domain.SuppressionReason, source string) ([]domain.Suppression, error) {
	var out []domain.Suppression
	var firstErr error
	for _, email := range emails {
		entry, err := s.Add(ctx, teamID, email, reason, source)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, *entry)
	}
	return out, firstErr
}

// Remove deletes a suppression entry. Removing an absent entry succeeds:
// the address is already not suppressed.
func (s *Service) Remove(ctx context.Context, teamID int64, email string) error {
	email = normalize(email)
	if email == "" {
		return ErrInvalidEmail
	}
	err := s.repo.Delete(ctx, teamID, email)
	if err == ErrNotFound {
		logger.Debug("removed non-existent suppression", "email", email, "team_id", teamID)
		return nil
	}
	if err != nil {
		logger.Error("failed to remove suppression", "email", email, "team_id", teamID, "error", err)
	}
	return err
}

// IsSuppressed checks whether an address is blocked for the team. Fails
// open: a registry error reads as "not suppressed" so sends are never
// blocked by an advisory subsystem.
func (s *Service) IsSuppressed(ctx context.Context, teamID int64, email string) bool {
	ok, err := s.repo.Exists(ctx, teamID, normalize(email))
	if err != nil {
		logger.Error("suppression check failed, failing open", "email", email, "team_id", teamID, "error", err)
		return false
	}
	return ok
}

// CheckMany checks a batch of addresses. The result has an entry for every
// input keyed by its original casing; matching is case-insensitive. Fails
// open on repository errors.
func (s *Service) CheckMany(ctx context.Context, teamID int64, emails []string) map[string]bool {
	result := make(map[string]bool, len(emails))
	if len(emails) == 0 {
		return result
	}

	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, normalize(e))
	}

	suppressed, err := s.repo.ExistsMany(ctx, teamID, normalized)
	if err != nil {
		logger.Error("bulk suppression check failed, failing open", "team_id", teamID, "count", len(emails), "error", err)
		for _, e := range emails {
			result[e] = false
		}
		return result
	}

	for _, e := range emails {
		result[e] = suppressed[normalize(e)]
	}
	return result
}

// List returns suppression entries matching the filter plus the total count.
func (s *Service) List(ctx context.Context, teamID int64, f ListFilter) ([]domain.Suppression, int, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	return s.repo.List(ctx, teamID, f)
}

// Stats returns entry counts per reason. Every known reason is present in
// the result, zero-filled when it has no entries.
func (s *Service) Stats(ctx context.Context, teamID int64) (map[domain.SuppressionReason]int, error) {
	counts, err := s.repo.CountByReason(ctx, teamID)
	if err != nil {
		return nil, err
	}
	result := make(map[domain.SuppressionReason]int, len(domain.AllSuppressionReasons()))
	for _, r := range domain.AllSuppressionReasons() {
		result[r] = counts[r]
	}
	return result, nil
}
