package sending

import (
	"context"
	"time"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Repository persists messages and resolves sending domains.
type Repository interface {
	// CreateEmail inserts the message row with its initial status and writes
	// the matching lifecycle event in the same transaction.
	CreateEmail(ctx context.Context, email *domain.Email) error

	// GetEmail returns a team's message, or ErrMessageNotFound.
	GetEmail(ctx context.Context, teamID int64, emailID string) (*domain.Email, error)

	// ListEvents returns the message's lifecycle events, oldest first.
	ListEvents(ctx context.Context, emailID string) ([]domain.EmailEvent, error)

	// GetDomainByName resolves a team's sending domain by its DNS name, or
	// ErrDomainMismatch when the team has no such domain.
	GetDomainByName(ctx context.Context, teamID int64, name string) (*domain.SendingDomain, error)

	// UpdateScheduledAt moves a scheduled message's due time.
	UpdateScheduledAt(ctx context.Context, teamID int64, emailID string, at time.Time) error
}

// Dispatcher is the lane-facing surface the send path needs.
type Dispatcher interface {
	Enqueue(ctx context.Context, emailID, region string, category domain.EmailCategory, unsubscribeURL string, delay time.Duration) error
	Cancel(ctx context.Context, emailID string) error
	Reschedule(ctx context.Context, emailID string, delay time.Duration) error
}

// SuppressionChecker screens recipients before dispatch.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, teamID int64, email string) bool
}

// FailureRecorder records a FAILED lifecycle event when a message cannot be
// queued after its row was created.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, emailID, reason string) error
}
