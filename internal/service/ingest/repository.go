package ingest

import (
	"context"

	"github.com/unsend-dev/unsend-sub000/internal/domain"
)

// Repository is the ingestion view of message, campaign and contact storage.
type Repository interface {
	// GetEmailByProviderID resolves a message by the provider's message id,
	// or ErrMessageNotFound.
	GetEmailByProviderID(ctx context.Context, providerEmailID string) (*domain.Email, error)

	// GetEmailByID resolves a message by our own id, or ErrMessageNotFound.
	// Used when the provider event carries the embedded message header.
	GetEmailByID(ctx context.Context, emailID string) (*domain.Email, error)

	// SetProviderEmailID backfills the provider's message id on a message
	// that was matched through the embedded header, so later events resolve
	// by provider id directly.
	SetProviderEmailID(ctx context.Context, emailID, providerEmailID string) error

	// AppendEvent writes one lifecycle event to the message's log.
	AppendEvent(ctx context.Context, event *domain.EmailEvent) error

	// HasEvent reports whether the message's log already holds an event
	// with the given status.
	HasEvent(ctx context.Context, emailID string, status domain.EmailStatus) (bool, error)

	// AdvanceStatus conditionally moves latestStatus to next. The update is
	// atomic: it applies only while next still outranks the stored value,
	// and reports whether it did.
	AdvanceStatus(ctx context.Context, emailID string, next domain.EmailStatus) (bool, error)

	// IncrementCampaignCounter bumps one aggregate counter on a campaign.
	IncrementCampaignCounter(ctx context.Context, campaignID, counter string) error

	// UnsubscribeContact flips a contact to unsubscribed with the reason.
	UnsubscribeContact(ctx context.Context, contactID string, reason domain.UnsubscribeReason) error
}

// Suppressor adds addresses to the suppression registry when the provider
// reports a permanent failure.
type Suppressor interface {
	Add(ctx context.Context, teamID int64, email string, reason domain.SuppressionReason, source string) (*domain.Suppression, error)
}

// Notifier fans an accepted status event out to team webhook subscribers.
// Implementations must not block ingestion.
type Notifier interface {
	Notify(email *domain.Email, status domain.EmailStatus, data map[string]any)
}
