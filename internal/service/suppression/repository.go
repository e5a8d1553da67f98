package suppression

import (
	"context"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Repository defines the data access contract for suppression entries.
// Implementations must be safe for concurrent use. Emails passed to every
// method are already lowercase-trimmed by the service.
type Repository interface {
	// Upsert inserts or updates the entry keyed by (team, email), refreshing
	// reason, source and updated_at when it already exists.
	Upsert(ctx context.Context, s *domain.Suppression) (*domain.Suppression, error)

	// Delete removes the entry. Returns ErrNotFound when absent.
	Delete(ctx context.Context, teamID int64, email string) error

	// Exists reports whether the (team, email) pair is suppressed.
	Exists(ctx context.Context, teamID int64, email string) (bool, error)

	// ExistsMany returns the subset of emails that are suppressed.
	ExistsMany(ctx context.Context, teamID int64, emails []string) (map[string]bool, error)

	// List returns entries matching the filter plus the unpaged total.
	List(ctx context.Context, teamID int64, f ListFilter) ([]domain.Suppression, int, error)

	// CountByReason returns entry counts grouped by reason.
	CountByReason(ctx context.Context, teamID int64) (map[domain.SuppressionReason]int, error)
}

// ListFilter controls pagination, search and sorting for suppression lists.
type ListFilter struct {
	Search    string
	Reason    domain.SuppressionReason
	Limit     int
	Offset    int
	SortBy    string // email | reason | created_at
	SortOrder string // asc | desc
}
